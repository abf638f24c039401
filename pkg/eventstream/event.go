package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/deepgate/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeUsageRecorded is emitted after a usage record is stored.
	EventTypeUsageRecorded = "deepgate.usage.recorded"
)

// UsageRecordedEvent is a transport-neutral event payload for a stored
// usage record.
type UsageRecordedEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Record        storage.Record `json:"record"`
}

// NewUsageRecordedEvent wraps rec in a fresh event envelope.
func NewUsageRecordedEvent(rec storage.Record) *UsageRecordedEvent {
	return &UsageRecordedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeUsageRecorded,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Record:        rec,
	}
}
