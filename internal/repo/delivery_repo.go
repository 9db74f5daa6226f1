package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khyo-labs/mutate/internal/domain"
)

// DeliveryRepo — репозиторий webhook deliveries.
type DeliveryRepo struct {
	pool *pgxpool.Pool
}

// NewDeliveryRepo создаёт DeliveryRepo.
func NewDeliveryRepo(pool *pgxpool.Pool) *DeliveryRepo {
	return &DeliveryRepo{pool: pool}
}

const deliveryColumns = `
	id, webhook_id, job_id, url, event_type, payload, payload_hash,
	status, attempts, last_attempt_at, next_attempt_at,
	response_status, response_body, error, idempotency_key, created_at
`

// CreateIfAbsent создаёт delivery, если idempotency key ещё не встречался.
//
// Дубликат ключа — no-op (upsert-ignore): повторная постановка того же
// логического уведомления не создаёт вторую delivery-запись.
// Возвращает true, если запись была создана.
func (r *DeliveryRepo) CreateIfAbsent(ctx context.Context, d *domain.WebhookDelivery) (bool, error) {
	query := `
		INSERT INTO webhook_deliveries (` + deliveryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (idempotency_key) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		d.ID,
		d.WebhookID,
		d.JobID,
		d.URL,
		d.EventType,
		d.Payload,
		d.PayloadHash,
		d.Status,
		d.Attempts,
		d.LastAttemptAt,
		d.NextAttemptAt,
		nullInt(d.ResponseStatus),
		nullString(d.ResponseBody),
		nullString(d.Error),
		d.IdempotencyKey,
		d.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert delivery: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Update обновляет delivery после очередной попытки.
func (r *DeliveryRepo) Update(ctx context.Context, d *domain.WebhookDelivery) error {
	query := `
		UPDATE webhook_deliveries
		SET status = $2, attempts = $3, last_attempt_at = $4, next_attempt_at = $5,
		    response_status = $6, response_body = $7, error = $8
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		d.ID,
		d.Status,
		d.Attempts,
		d.LastAttemptAt,
		d.NextAttemptAt,
		nullInt(d.ResponseStatus),
		nullString(d.ResponseBody),
		nullString(d.Error),
	)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID возвращает delivery по ID.
func (r *DeliveryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookDelivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE id = $1`
	return r.scanDelivery(r.pool.QueryRow(ctx, query, id))
}

// ListDead возвращает deliveries в терминальном failed (dead letter).
func (r *DeliveryRepo) ListDead(ctx context.Context, limit int) ([]domain.WebhookDelivery, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM webhook_deliveries
		WHERE status = 'failed'
		ORDER BY created_at DESC
		LIMIT $1
	`
	return r.listDeliveries(ctx, query, limit)
}

// ListStalePending возвращает pending deliveries, у которых
// next_attempt_at в прошлом — зависшие после рестарта воркера.
func (r *DeliveryRepo) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]domain.WebhookDelivery, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM webhook_deliveries
		WHERE status = 'pending' AND next_attempt_at IS NOT NULL AND next_attempt_at < $1
		ORDER BY next_attempt_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale deliveries: %w", err)
	}
	defer rows.Close()
	return r.collectDeliveries(rows)
}

func (r *DeliveryRepo) listDeliveries(ctx context.Context, query string, args ...any) ([]domain.WebhookDelivery, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()
	return r.collectDeliveries(rows)
}

func (r *DeliveryRepo) collectDeliveries(rows pgx.Rows) ([]domain.WebhookDelivery, error) {
	var deliveries []domain.WebhookDelivery
	for rows.Next() {
		d, err := r.scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, *d)
	}
	return deliveries, rows.Err()
}

// scanDelivery читает одну delivery из строки результата.
func (r *DeliveryRepo) scanDelivery(row pgx.Row) (*domain.WebhookDelivery, error) {
	var d domain.WebhookDelivery
	var responseStatus *int
	var responseBody, errMsg *string

	err := row.Scan(
		&d.ID,
		&d.WebhookID,
		&d.JobID,
		&d.URL,
		&d.EventType,
		&d.Payload,
		&d.PayloadHash,
		&d.Status,
		&d.Attempts,
		&d.LastAttemptAt,
		&d.NextAttemptAt,
		&responseStatus,
		&responseBody,
		&errMsg,
		&d.IdempotencyKey,
		&d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan delivery: %w", err)
	}

	if responseStatus != nil {
		d.ResponseStatus = *responseStatus
	}
	if responseBody != nil {
		d.ResponseBody = *responseBody
	}
	if errMsg != nil {
		d.Error = *errMsg
	}

	return &d, nil
}

// nullInt возвращает nil для нулевого значения (NULL в БД).
func nullInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
