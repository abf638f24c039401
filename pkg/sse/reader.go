package sse

import (
	"bufio"
	"io"
	"strings"
)

const (
	initialBufferSize = 64 * 1024
	maxLineSize       = 1024 * 1024
)

// Reader reads newline-delimited SSE records from an upstream body and
// yields one Event per "data: " line.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   skipped: "", ":keep-alive", "event: x", "data:x"
// │  Reader.Next()   │──────────────────────────────────────────────────▶
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Event       │
// └──────────────────┘
type Reader struct {
	scanner *bufio.Scanner

	// Skipped counts non-empty lines that did not carry the data prefix.
	Skipped int
}

// NewReader returns a Reader over src. src is typically the body of an
// upstream streaming HTTP response.
func NewReader(src io.Reader) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, initialBufferSize), maxLineSize)

	return &Reader{scanner: scanner}
}

// Next blocks until the next data line is available and returns it.
// Next returns nil, nil when the source is exhausted, and a non-nil error
// when reading from the source fails (including lines over 1 MiB).
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")
		if line == "" {
			continue
		}

		payload, ok := strings.CutPrefix(line, DataPrefix)
		if !ok {
			r.Skipped++
			continue
		}

		return &Event{Data: payload}, nil
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	return nil, nil
}
