package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khyo-labs/mutate/internal/domain"
)

// JobRepo — репозиторий jobs.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

const jobColumns = `
	id, organization_id, configuration_id, status, file_name,
	conversion_type, callback_url, progress, metadata, created_at
`

// Create создаёт job.
func (r *JobRepo) Create(ctx context.Context, job *domain.Job) error {
	metadataJSON, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.OrganizationID,
		job.ConfigurationID,
		job.Status,
		job.FileName,
		nullString(job.ConversionType),
		nullString(job.CallbackURL),
		job.Progress,
		metadataJSON,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID возвращает job по ID.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	return r.scanJob(r.pool.QueryRow(ctx, query, id))
}

// Update обновляет статус, прогресс и metadata job'а.
//
// Терминальные статусы иммутабельны: строка, уже находящаяся в
// completed/failed, не обновляется — возвращается ErrTerminalState.
func (r *JobRepo) Update(ctx context.Context, job *domain.Job) error {
	metadataJSON, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		UPDATE jobs
		SET status = $2, progress = $3, metadata = $4
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`
	result, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.Progress,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Либо job не существует, либо уже терминален
		existing, getErr := r.GetByID(ctx, job.ID)
		if getErr != nil {
			return getErr
		}
		if existing.Status.IsTerminal() {
			return ErrTerminalState
		}
		return ErrNotFound
	}
	return nil
}

// UpdateProgress обновляет только прогресс. Best-effort запись:
// терминальные jobs молча пропускаются.
func (r *JobRepo) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	query := `
		UPDATE jobs
		SET progress = $2
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`
	_, err := r.pool.Exec(ctx, query, id, progress)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// scanJob читает один job из строки результата.
func (r *JobRepo) scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var metadataJSON []byte
	var conversionType, callbackURL *string

	err := row.Scan(
		&job.ID,
		&job.OrganizationID,
		&job.ConfigurationID,
		&job.Status,
		&job.FileName,
		&conversionType,
		&callbackURL,
		&job.Progress,
		&metadataJSON,
		&job.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &job.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if conversionType != nil {
		job.ConversionType = *conversionType
	}
	if callbackURL != nil {
		job.CallbackURL = *callbackURL
	}

	return &job, nil
}
