// Package webhook — доставка исходящих уведомлений: resolve
// destination по priority chain, подпись payload'а, retry с
// exponential backoff и dead-letter семантика.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/khyo-labs/mutate/internal/domain"
	"github.com/khyo-labs/mutate/internal/telemetry"
)

// Дефолты доставки.
const (
	defaultMaxRetries     = 5
	defaultBaseDelay      = time.Second
	defaultAttemptTimeout = 30 * time.Second
	defaultUserAgent      = "mutate-webhook/1.0"

	// Максимальный размер сохраняемого тела ответа.
	maxResponseBodyLen = 2048
)

// Заголовки исходящего запроса.
const (
	headerEvent      = "X-Webhook-Event"
	headerTimestamp  = "X-Webhook-Timestamp"
	headerDeliveryID = "X-Webhook-Delivery-ID"
	headerSignature  = "X-Webhook-Signature"
)

// DeliveryStore — персистентность delivery-записей.
type DeliveryStore interface {
	CreateIfAbsent(ctx context.Context, d *domain.WebhookDelivery) (bool, error)
	Update(ctx context.Context, d *domain.WebhookDelivery) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookDelivery, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]domain.WebhookDelivery, error)
}

// WebhookStore — доступ к организационным webhook-endpoint'ам.
type WebhookStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Webhook, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
}

// Destination — разрешённый получатель уведомления.
type Destination struct {
	// URL — прошедший валидацию адрес.
	URL string

	// WebhookID — организационный webhook, если destination им является.
	WebhookID *uuid.UUID

	// Secret — секрет для подписи. Пустой — запрос не подписывается.
	Secret string
}

// Dispatcher доставляет уведомления с retry и dead-letter.
//
// Для одной delivery попытки строго последовательны: следующая
// планируется только после провала предыдущей и истечения backoff.
// Разные deliveries независимы.
type Dispatcher struct {
	deliveries DeliveryStore
	webhooks   WebhookStore
	client     *http.Client
	logger     *slog.Logger

	maxRetries     int
	baseDelay      time.Duration
	attemptTimeout time.Duration
	userAgent      string
	allowLocalhost bool

	// sleep подменяется в тестах.
	sleep func(ctx context.Context, d time.Duration) error
}

// Config — конфигурация Dispatcher.
type Config struct {
	Deliveries DeliveryStore
	Webhooks   WebhookStore

	// Client — HTTP-клиент (опционально).
	Client *http.Client

	// MaxRetries — максимум попыток на delivery (default: 5).
	MaxRetries int

	// BaseDelay — начальная backoff-задержка (default: 1s).
	BaseDelay time.Duration

	// AttemptTimeout — таймаут одной попытки (default: 30s).
	AttemptTimeout time.Duration

	// AllowLocalhost — допускать localhost destinations (dev-режим).
	AllowLocalhost bool

	Logger *slog.Logger
}

// NewDispatcher создаёт Dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	attemptTimeout := cfg.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = defaultAttemptTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		deliveries:     cfg.Deliveries,
		webhooks:       cfg.Webhooks,
		client:         client,
		logger:         logger,
		maxRetries:     maxRetries,
		baseDelay:      baseDelay,
		attemptTimeout: attemptTimeout,
		userAgent:      defaultUserAgent,
		allowLocalhost: cfg.AllowLocalhost,
		sleep:          sleepCtx,
	}
}

// ResolveDestination разрешает получателя по строгой priority chain:
//
//  1. Per-job callback URL
//  2. Организационный webhook, выбранный на конфигурации
//  3. Legacy callback URL конфигурации
//
// Первый кандидат, прошедший валидацию URL, выигрывает — дальше
// chain не пробуется. Ни одного валидного — ErrNoDestination.
func (d *Dispatcher) ResolveDestination(ctx context.Context, job *domain.Job, cfg *domain.Configuration) (*Destination, error) {
	// 1. Per-job callback
	if job.CallbackURL != "" {
		if err := ValidateURL(job.CallbackURL, d.allowLocalhost); err == nil {
			return &Destination{URL: job.CallbackURL}, nil
		} else {
			d.logger.Warn("job callback url rejected",
				"job_id", job.ID,
				"error", err,
			)
		}
	}

	// 2. Выбранный организационный webhook
	if cfg != nil && cfg.WebhookID != nil {
		wh, err := d.webhooks.GetByID(ctx, *cfg.WebhookID)
		switch {
		case err != nil:
			d.logger.Warn("configured webhook not loadable",
				"webhook_id", *cfg.WebhookID,
				"error", err,
			)
		case !wh.IsActive:
			d.logger.Warn("configured webhook is inactive", "webhook_id", wh.ID)
		default:
			if err := ValidateURL(wh.URL, d.allowLocalhost); err == nil {
				return &Destination{URL: wh.URL, WebhookID: &wh.ID, Secret: wh.Secret}, nil
			}
			d.logger.Warn("configured webhook url rejected", "webhook_id", wh.ID)
		}
	}

	// 3. Legacy callback конфигурации
	if cfg != nil && cfg.CallbackURL != "" {
		if err := ValidateURL(cfg.CallbackURL, d.allowLocalhost); err == nil {
			return &Destination{URL: cfg.CallbackURL}, nil
		}
		d.logger.Warn("configuration callback url rejected", "configuration_id", cfg.ID)
	}

	return nil, ErrNoDestination
}

// Dispatch доставляет уведомление о результате job.
//
// Destination разрешается по priority chain; без валидного
// destination delivery-запись не создаётся и ошибки нет — результат
// job не зависит от уведомления. Дубликат idempotency key — no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, job *domain.Job, cfg *domain.Configuration, payload domain.WebhookPayload) error {
	dest, err := d.ResolveDestination(ctx, job, cfg)
	if err != nil {
		if errors.Is(err, ErrNoDestination) {
			d.logger.Info("no webhook destination, skipping notification", "job_id", job.ID)
			return nil
		}
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	delivery := &domain.WebhookDelivery{
		ID:          uuid.New(),
		WebhookID:   dest.WebhookID,
		JobID:       job.ID,
		URL:         dest.URL,
		EventType:   domain.EventTransformationCompleted,
		Payload:     body,
		PayloadHash: PayloadHash(body),
		Status:      domain.DeliveryStatusPending,
		IdempotencyKey: IdempotencyKey(
			payload.OrganizationID,
			payload.ConfigurationID,
			domain.EventTransformationCompleted,
			job.ID,
			dest.URL,
		),
		CreatedAt: time.Now(),
	}

	created, err := d.deliveries.CreateIfAbsent(ctx, delivery)
	if err != nil {
		return fmt.Errorf("create delivery: %w", err)
	}
	if !created {
		d.logger.Info("duplicate delivery suppressed",
			"job_id", job.ID,
			"idempotency_key", delivery.IdempotencyKey,
		)
		return nil
	}

	return d.deliver(ctx, delivery, dest.Secret)
}

// deliver выполняет попытки доставки с exponential backoff.
//
// Задержки: baseDelay, 2×, 4×, ... После maxRetries-й неудачи
// delivery переводится в терминальный failed и сохраняется
// для ручного replay.
func (d *Dispatcher) deliver(ctx context.Context, delivery *domain.WebhookDelivery, secret string) error {
	logger := telemetry.WithDeliveryID(d.logger, delivery.ID.String())

	for attempt := 1; ; attempt++ {
		status, respBody, attemptErr := d.attempt(ctx, delivery, secret)

		if attemptErr == nil {
			delivery.RecordAttempt(status, respBody, "")
			delivery.MarkSuccess()
			if err := d.deliveries.Update(ctx, delivery); err != nil {
				return fmt.Errorf("update delivery: %w", err)
			}

			telemetry.WebhookAttempts.WithLabelValues("success").Inc()
			logger.Info("webhook delivered",
				"url", delivery.URL,
				"attempts", delivery.Attempts,
				"status", status,
			)

			if delivery.WebhookID != nil {
				if err := d.webhooks.TouchLastUsed(ctx, *delivery.WebhookID); err != nil {
					logger.Warn("failed to touch webhook last_used_at", "error", err)
				}
			}
			return nil
		}

		telemetry.WebhookAttempts.WithLabelValues("failure").Inc()
		delivery.RecordAttempt(status, respBody, attemptErr.Error())

		logger.Warn("webhook attempt failed",
			"url", delivery.URL,
			"attempt", attempt,
			"status", status,
			"error", attemptErr,
		)

		if attempt >= d.maxRetries {
			break
		}

		// Backoff: baseDelay * 2^(attempt-1)
		delay := d.baseDelay << (attempt - 1)
		delivery.ScheduleNext(time.Now().Add(delay))
		if err := d.deliveries.Update(ctx, delivery); err != nil {
			return fmt.Errorf("update delivery: %w", err)
		}

		if err := d.sleep(ctx, delay); err != nil {
			// Контекст отменён — delivery остаётся pending,
			// sweeper подхватит её после рестарта.
			return err
		}
	}

	delivery.MarkFailed()
	if err := d.deliveries.Update(ctx, delivery); err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}

	telemetry.WebhookDeadLettered.Inc()
	logger.Error("webhook delivery dead-lettered",
		"url", delivery.URL,
		"attempts", delivery.Attempts,
	)
	return fmt.Errorf("%w: %d attempts", ErrRetriesExhausted, delivery.Attempts)
}

// attempt выполняет один POST.
// Успех — любой 2xx; всё остальное (включая таймаут) — ошибка попытки.
func (d *Dispatcher) attempt(ctx context.Context, delivery *domain.WebhookDelivery, secret string) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.URL, bytes.NewReader(delivery.Payload))
	if err != nil {
		return 0, "", &DeliveryError{Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set(headerEvent, string(delivery.EventType))
	req.Header.Set(headerTimestamp, strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set(headerDeliveryID, delivery.ID.String())
	if secret != "" {
		req.Header.Set(headerSignature, Sign(secret, delivery.Payload))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", &DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyLen))
	if err != nil {
		respBody = nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, string(respBody), nil
	}

	return resp.StatusCode, string(respBody), &DeliveryError{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
	}
}

// Replay повторно запускает доставку для delivery в терминальном failed.
//
// Попытки начинаются заново с той же backoff-политикой; счётчик
// attempts продолжает расти для аудита.
func (d *Dispatcher) Replay(ctx context.Context, deliveryID uuid.UUID) error {
	delivery, err := d.deliveries.GetByID(ctx, deliveryID)
	if err != nil {
		return err
	}
	if delivery.Status != domain.DeliveryStatusFailed {
		return fmt.Errorf("%w: status %s", ErrDeliveryNotReplayable, delivery.Status)
	}

	delivery.Status = domain.DeliveryStatusPending
	delivery.Error = ""
	if err := d.deliveries.Update(ctx, delivery); err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}

	secret := ""
	if delivery.WebhookID != nil {
		if wh, err := d.webhooks.GetByID(ctx, *delivery.WebhookID); err == nil {
			secret = wh.Secret
		}
	}

	return d.deliver(ctx, delivery, secret)
}

// sleepCtx ждёт d с учётом отмены контекста.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
