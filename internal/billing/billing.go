// Package billing — usage-хуки биллинга.
//
// Воркер вызывает RecordUsage и на completed, и на failed job'ах;
// ошибка хука логируется и проглатывается — биллинг никогда не
// проваливает job.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageEvent — одно событие использования.
type UsageEvent struct {
	OrganizationID uuid.UUID
	JobID          uuid.UUID
	ConversionType string
	FileSizeBytes  int64
	Success        bool
	DurationMs     int64
}

// Tracker — контракт учёта использования.
type Tracker interface {
	RecordUsage(ctx context.Context, event UsageEvent) error
}

// PgTracker — Tracker, пишущий usage-события в Postgres.
type PgTracker struct {
	pool *pgxpool.Pool
}

// NewPgTracker создаёт PgTracker.
func NewPgTracker(pool *pgxpool.Pool) *PgTracker {
	return &PgTracker{pool: pool}
}

// RecordUsage вставляет usage-событие.
func (t *PgTracker) RecordUsage(ctx context.Context, event UsageEvent) error {
	query := `
		INSERT INTO usage_events
			(id, organization_id, job_id, conversion_type, file_size_bytes, success, duration_ms, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := t.pool.Exec(ctx, query,
		uuid.New(),
		event.OrganizationID,
		event.JobID,
		event.ConversionType,
		event.FileSizeBytes,
		event.Success,
		event.DurationMs,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	}
	return nil
}

// NoopTracker — Tracker-заглушка (биллинг выключен).
type NoopTracker struct{}

// RecordUsage ничего не делает.
func (NoopTracker) RecordUsage(context.Context, UsageEvent) error {
	return nil
}
