package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khyo-labs/mutate/internal/domain"
)

// WebhookRepo — репозиторий организационных webhook-endpoint'ов.
type WebhookRepo struct {
	pool *pgxpool.Pool
}

// NewWebhookRepo создаёт WebhookRepo.
func NewWebhookRepo(pool *pgxpool.Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

const webhookColumns = `
	id, organization_id, name, url, secret, is_active, last_used_at, created_at
`

// GetByID возвращает webhook по ID.
func (r *WebhookRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = $1`
	return r.scanWebhook(r.pool.QueryRow(ctx, query, id))
}

// ListByOrganization возвращает webhooks организации.
func (r *WebhookRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]domain.Webhook, error) {
	query := `
		SELECT ` + webhookColumns + `
		FROM webhooks
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []domain.Webhook
	for rows.Next() {
		wh, err := r.scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, *wh)
	}
	return webhooks, rows.Err()
}

// TouchLastUsed обновляет last_used_at после успешной доставки.
func (r *WebhookRepo) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE webhooks SET last_used_at = NOW() WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("touch webhook last_used_at: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanWebhook читает один webhook из строки результата.
func (r *WebhookRepo) scanWebhook(row pgx.Row) (*domain.Webhook, error) {
	var wh domain.Webhook
	var secret *string

	err := row.Scan(
		&wh.ID,
		&wh.OrganizationID,
		&wh.Name,
		&wh.URL,
		&secret,
		&wh.IsActive,
		&wh.LastUsedAt,
		&wh.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan webhook: %w", err)
	}

	if secret != nil {
		wh.Secret = *secret
	}

	return &wh, nil
}
