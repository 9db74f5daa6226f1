package webhook

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/robfig/cron/v3"
)

// Дефолты sweeper'а.
const (
	defaultSweepSchedule = "*/5 * * * *"
	defaultSweepLimit    = 50
	defaultStaleAfter    = 2 * time.Minute

	envSweepSchedule = "WEBHOOK_SWEEP_CRON"
)

// Sweeper периодически подбирает pending deliveries, чья следующая
// попытка просрочена — такое бывает после рестарта worker'а посреди
// backoff-паузы — и возобновляет доставку.
type Sweeper struct {
	dispatcher *Dispatcher
	deliveries DeliveryStore
	cron       *cron.Cron
	logger     *slog.Logger

	schedule   string
	limit      int
	staleAfter time.Duration
}

// SweeperConfig — конфигурация Sweeper.
type SweeperConfig struct {
	Dispatcher *Dispatcher
	Deliveries DeliveryStore

	// Schedule — cron-выражение (default: каждые 5 минут,
	// переопределяется WEBHOOK_SWEEP_CRON).
	Schedule string

	// Limit — максимум deliveries за один проход (default: 50).
	Limit int

	// StaleAfter — насколько должна быть просрочена следующая
	// попытка, чтобы delivery считалась брошенной (default: 2m).
	StaleAfter time.Duration

	Logger *slog.Logger
}

// NewSweeper создаёт Sweeper.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = os.Getenv(envSweepSchedule)
	}
	if schedule == "" {
		schedule = defaultSweepSchedule
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		dispatcher: cfg.Dispatcher,
		deliveries: cfg.Deliveries,
		cron:       cron.New(),
		logger:     logger,
		schedule:   schedule,
		limit:      limit,
		staleAfter: staleAfter,
	}
}

// Start регистрирует cron-задачу и запускает планировщик.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.Sweep(ctx); err != nil {
			s.logger.Error("delivery sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("delivery sweeper started", "schedule", s.schedule)
	return nil
}

// Stop останавливает планировщик и дожидается активного прохода.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("delivery sweeper stopped")
}

// Sweep выполняет один проход: находит просроченные pending
// deliveries и возобновляет их доставку. Ошибка одной delivery
// не прерывает проход.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.staleAfter)
	stale, err := s.deliveries.ListStalePending(ctx, cutoff, s.limit)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	s.logger.Info("resuming stale deliveries", "count", len(stale))

	for i := range stale {
		delivery := &stale[i]

		secret := ""
		if delivery.WebhookID != nil {
			if wh, err := s.dispatcher.webhooks.GetByID(ctx, *delivery.WebhookID); err == nil {
				secret = wh.Secret
			}
		}

		if err := s.dispatcher.deliver(ctx, delivery, secret); err != nil {
			s.logger.Warn("stale delivery resume failed",
				"delivery_id", delivery.ID,
				"error", err,
			)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}
