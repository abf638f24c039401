// Package sqldriver implements storage.Driver over database/sql using ent's
// dialect-aware query builder. It is database-agnostic and is embedded by
// the sqlite and postgres drivers.
package sqldriver

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/deepgate/pkg/storage"
)

// Table is the usage record table name.
const Table = "usage_records"

var columns = []string{
	"id",
	"request_id",
	"model",
	"streaming",
	"prompt_tokens",
	"completion_tokens",
	"total_tokens",
	"cached_tokens",
	"finish_reason",
	"outcome",
	"duration_ms",
	"created_at",
}

// Driver provides usage record storage over an ent SQL driver.
type Driver struct {
	drv *entsql.Driver
}

// Open wraps db for the given ent dialect and creates the usage table when
// it does not exist.
func Open(ctx context.Context, dialectName string, db *sql.DB) (*Driver, error) {
	ddl, err := schema(dialectName)
	if err != nil {
		return nil, err
	}

	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Driver{drv: entsql.OpenDB(dialectName, db)}, nil
}

func schema(dialectName string) ([]string, error) {
	var ts string
	switch dialectName {
	case dialect.SQLite:
		ts = "TIMESTAMP"
	case dialect.Postgres:
		ts = "TIMESTAMPTZ"
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialectName)
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS ` + Table + ` (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL,
	streaming BOOLEAN NOT NULL DEFAULT FALSE,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	cached_tokens INTEGER NOT NULL DEFAULT 0,
	finish_reason TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL DEFAULT '',
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at ` + ts + ` NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS usage_records_created_at ON ` + Table + ` (created_at)`,
	}, nil
}

// DB returns the underlying database handle.
func (d *Driver) DB() *sql.DB {
	return d.drv.DB()
}

// Insert stores a record.
func (d *Driver) Insert(ctx context.Context, rec *storage.Record) error {
	if err := storage.Prepare(rec); err != nil {
		return err
	}

	query, args := entsql.Dialect(d.drv.Dialect()).
		Insert(Table).
		Columns(columns...).
		Values(
			rec.ID,
			rec.RequestID,
			rec.Model,
			rec.Streaming,
			rec.PromptTokens,
			rec.CompletionTokens,
			rec.TotalTokens,
			rec.CachedTokens,
			rec.FinishReason,
			rec.Outcome,
			rec.DurationMs,
			rec.CreatedAt.UTC(),
		).
		Query()

	if _, err := d.drv.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// List returns up to limit records, newest first.
func (d *Driver) List(ctx context.Context, limit int) ([]*storage.Record, error) {
	b := entsql.Dialect(d.drv.Dialect())
	sel := b.Select(columns...).
		From(b.Table(Table)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id"))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	rows, err := d.drv.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	var out []*storage.Record
	for rows.Next() {
		rec := &storage.Record{}
		if err := rows.Scan(
			&rec.ID,
			&rec.RequestID,
			&rec.Model,
			&rec.Streaming,
			&rec.PromptTokens,
			&rec.CompletionTokens,
			&rec.TotalTokens,
			&rec.CachedTokens,
			&rec.FinishReason,
			&rec.Outcome,
			&rec.DurationMs,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}

	return out, nil
}

// Summary aggregates token usage per model.
func (d *Driver) Summary(ctx context.Context) (*storage.Summary, error) {
	b := entsql.Dialect(d.drv.Dialect())
	query, args := b.Select(
		"model",
		entsql.Count("*"),
		entsql.Sum("prompt_tokens"),
		entsql.Sum("completion_tokens"),
		entsql.Sum("total_tokens"),
	).
		From(b.Table(Table)).
		GroupBy("model").
		Query()

	rows, err := d.drv.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	defer rows.Close()

	sum := storage.NewSummary()
	for rows.Next() {
		var (
			model string
			m     storage.ModelSummary
		)
		if err := rows.Scan(&model, &m.Calls, &m.PromptTokens, &m.CompletionTokens, &m.TotalTokens); err != nil {
			return nil, fmt.Errorf("failed to scan usage summary: %w", err)
		}
		sum.Add(model, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}

	return sum, nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	return d.drv.Close()
}

var _ storage.Driver = (*Driver)(nil)
