// Package inmemory provides a process-local usage record driver.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/papercomputeco/deepgate/pkg/storage"
)

// Driver implements storage.Driver using an in-memory slice.
type Driver struct {
	// mu guards records
	mu sync.RWMutex

	// records is kept in insertion order
	records []*storage.Record
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{}
}

// Insert stores a copy of rec.
func (d *Driver) Insert(_ context.Context, rec *storage.Record) error {
	if err := storage.Prepare(rec); err != nil {
		return err
	}

	stored := *rec

	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, &stored)
	return nil
}

// List returns up to limit records, newest first.
func (d *Driver) List(_ context.Context, limit int) ([]*storage.Record, error) {
	d.mu.RLock()
	out := make([]*storage.Record, 0, len(d.records))
	for i := len(d.records) - 1; i >= 0; i-- {
		rec := *d.records[i]
		out = append(out, &rec)
	}
	d.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Summary aggregates every stored record.
func (d *Driver) Summary(_ context.Context) (*storage.Summary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sum := storage.NewSummary()
	for _, rec := range d.records {
		sum.Add(rec.Model, storage.ModelSummary{
			Calls:            1,
			PromptTokens:     int64(rec.PromptTokens),
			CompletionTokens: int64(rec.CompletionTokens),
			TotalTokens:      int64(rec.TotalTokens),
		})
	}
	return sum, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

var _ storage.Driver = (*Driver)(nil)
