package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/khyo-labs/mutate/internal/mq"
	"github.com/khyo-labs/mutate/internal/repo"
)

// Replayer повторно запускает доставку dead-letter delivery.
type Replayer interface {
	Replay(ctx context.Context, deliveryID uuid.UUID) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	jobs       *repo.JobRepo
	configs    *repo.ConfigRepo
	deliveries *repo.DeliveryRepo
	webhooks   *repo.WebhookRepo
	publisher  *mq.Publisher
	replayer   Replayer
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Jobs       *repo.JobRepo
	Configs    *repo.ConfigRepo
	Deliveries *repo.DeliveryRepo
	Webhooks   *repo.WebhookRepo
	Publisher  *mq.Publisher
	Replayer   Replayer
	Logger     *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		jobs:       cfg.Jobs,
		configs:    cfg.Configs,
		deliveries: cfg.Deliveries,
		webhooks:   cfg.Webhooks,
		publisher:  cfg.Publisher,
		replayer:   cfg.Replayer,
		logger:     cfg.Logger,
	}
}
