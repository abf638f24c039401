package storage

import "errors"

// ErrNilRecord is returned when Insert is called with a nil record.
var ErrNilRecord = errors.New("cannot store nil record")

// ErrMissingModel is returned when a record names no model.
var ErrMissingModel = errors.New("usage record has no model")
