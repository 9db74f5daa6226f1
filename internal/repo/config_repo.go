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

// ConfigRepo — репозиторий конфигураций трансформации.
//
// Конфигурации версионируются: каждая версия — отдельная строка,
// изменение rules/output_format создаёт новую версию, старые
// версии хранятся для аудита.
type ConfigRepo struct {
	pool *pgxpool.Pool
}

// NewConfigRepo создаёт ConfigRepo.
func NewConfigRepo(pool *pgxpool.Pool) *ConfigRepo {
	return &ConfigRepo{pool: pool}
}

const configColumns = `
	id, organization_id, name, version, rules, output_format,
	webhook_id, callback_url, created_at
`

// GetByID возвращает последнюю версию конфигурации.
func (r *ConfigRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Configuration, error) {
	query := `
		SELECT ` + configColumns + `
		FROM configurations
		WHERE id = $1
		ORDER BY version DESC
		LIMIT 1
	`
	return r.scanConfig(r.pool.QueryRow(ctx, query, id))
}

// GetVersion возвращает конкретную версию конфигурации.
func (r *ConfigRepo) GetVersion(ctx context.Context, id uuid.UUID, version int) (*domain.Configuration, error) {
	query := `
		SELECT ` + configColumns + `
		FROM configurations
		WHERE id = $1 AND version = $2
	`
	return r.scanConfig(r.pool.QueryRow(ctx, query, id, version))
}

// CreateVersion вставляет новую версию конфигурации.
// Номер версии — max(version)+1 для данного id.
func (r *ConfigRepo) CreateVersion(ctx context.Context, cfg *domain.Configuration) error {
	rulesJSON, err := json.Marshal(cfg.Rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}

	query := `
		INSERT INTO configurations
			(id, organization_id, name, version, rules, output_format, webhook_id, callback_url, created_at)
		VALUES
			($1, $2, $3,
			 COALESCE((SELECT MAX(version) FROM configurations WHERE id = $1), 0) + 1,
			 $4, $5, $6, $7, $8)
		RETURNING version
	`
	err = r.pool.QueryRow(ctx, query,
		cfg.ID,
		cfg.OrganizationID,
		cfg.Name,
		rulesJSON,
		cfg.OutputFormat,
		cfg.WebhookID,
		nullString(cfg.CallbackURL),
		cfg.CreatedAt,
	).Scan(&cfg.Version)
	if err != nil {
		return fmt.Errorf("insert configuration version: %w", err)
	}
	return nil
}

// scanConfig читает одну конфигурацию из строки результата.
func (r *ConfigRepo) scanConfig(row pgx.Row) (*domain.Configuration, error) {
	var cfg domain.Configuration
	var rulesJSON []byte
	var callbackURL *string

	err := row.Scan(
		&cfg.ID,
		&cfg.OrganizationID,
		&cfg.Name,
		&cfg.Version,
		&rulesJSON,
		&cfg.OutputFormat,
		&cfg.WebhookID,
		&callbackURL,
		&cfg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan configuration: %w", err)
	}

	if rulesJSON != nil {
		// Rules декодируются через tagged-variant Unmarshal —
		// битые параметры отклоняются здесь, до движка правил.
		if err := json.Unmarshal(rulesJSON, &cfg.Rules); err != nil {
			return nil, fmt.Errorf("unmarshal rules: %w", err)
		}
	}
	if callbackURL != nil {
		cfg.CallbackURL = *callbackURL
	}

	return &cfg, nil
}

// nullString возвращает nil для пустой строки (NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
