// Package storage persists per-call usage records: which model answered,
// how many tokens it consumed and how the call ended.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultListLimit and MaxListLimit bound List queries made through the
// usage API.
const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// Record is one completed (or failed) upstream call.
type Record struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id,omitempty"`
	Model     string `json:"model"`
	Streaming bool   `json:"streaming"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	CachedTokens     int `json:"cached_tokens"`

	FinishReason string    `json:"finish_reason,omitempty"`
	Outcome      string    `json:"outcome"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Prepare validates rec and fills in a missing ID and CreatedAt.
func Prepare(rec *Record) error {
	if rec == nil {
		return ErrNilRecord
	}
	if rec.Model == "" {
		return ErrMissingModel
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return nil
}

// ModelSummary aggregates usage for a single model.
type ModelSummary struct {
	Calls            int64 `json:"calls"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Summary aggregates usage across every stored record.
type Summary struct {
	Calls            int64                   `json:"calls"`
	PromptTokens     int64                   `json:"prompt_tokens"`
	CompletionTokens int64                   `json:"completion_tokens"`
	TotalTokens      int64                   `json:"total_tokens"`
	ByModel          map[string]ModelSummary `json:"by_model"`
}

// NewSummary returns an empty Summary with an initialized ByModel map.
func NewSummary() *Summary {
	return &Summary{ByModel: map[string]ModelSummary{}}
}

// Add folds per-model totals into the summary.
func (s *Summary) Add(model string, m ModelSummary) {
	cur := s.ByModel[model]
	cur.Calls += m.Calls
	cur.PromptTokens += m.PromptTokens
	cur.CompletionTokens += m.CompletionTokens
	cur.TotalTokens += m.TotalTokens
	s.ByModel[model] = cur

	s.Calls += m.Calls
	s.PromptTokens += m.PromptTokens
	s.CompletionTokens += m.CompletionTokens
	s.TotalTokens += m.TotalTokens
}

// Driver defines the interface for usage record storage.
type Driver interface {
	// Insert stores a record. Records without an ID or CreatedAt get one.
	Insert(ctx context.Context, rec *Record) error

	// List returns up to limit records, newest first. A limit <= 0 returns
	// every record.
	List(ctx context.Context, limit int) ([]*Record, error)

	// Summary aggregates token usage across every stored record.
	Summary(ctx context.Context) (*Summary, error)

	// Close releases any resources held by the driver.
	Close() error
}
