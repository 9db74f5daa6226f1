package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType — тип webhook-события.
type EventType string

const (
	// EventTransformationCompleted — событие завершения трансформации
	// (отправляется и для completed, и для failed jobs; статус в payload).
	EventTransformationCompleted EventType = "transformation.completed"
)

// Webhook — организационный webhook-endpoint.
//
// Явно выбранный на конфигурации webhook — второй приоритет
// при resolve destination (после per-job callback).
type Webhook struct {
	// ID — уникальный идентификатор webhook.
	ID uuid.UUID `json:"id"`

	// OrganizationID — владелец webhook.
	OrganizationID uuid.UUID `json:"organization_id"`

	// Name — имя endpoint'а (для пользователя).
	Name string `json:"name"`

	// URL — destination URL.
	URL string `json:"url"`

	// Secret — секрет для HMAC-подписи payload. Пустой — без подписи.
	Secret string `json:"-"`

	// IsActive — неактивные webhooks не участвуют в resolve.
	IsActive bool `json:"is_active"`

	// LastUsedAt — время последней успешной доставки через этот webhook.
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// WebhookPayload — wire-представление уведомления, отправляемого destination.
type WebhookPayload struct {
	JobID            uuid.UUID `json:"jobId"`
	Status           JobStatus `json:"status"`
	OrganizationID   uuid.UUID `json:"organizationId"`
	ConfigurationID  uuid.UUID `json:"configurationId"`
	DownloadURL      string    `json:"downloadUrl,omitempty"`
	Error            string    `json:"error,omitempty"`
	ExecutionLog     []string  `json:"executionLog,omitempty"`
	CompletedAt      time.Time `json:"completedAt"`
	FileSize         int64     `json:"fileSize,omitempty"`
	OriginalFileName string    `json:"originalFileName"`
}

// WebhookDelivery — одна логическая доставка уведомления,
// охватывающая все retry-попытки одного события на один URL.
//
// Delivery создаётся в pending при dispatch; каждая попытка
// мутирует Attempts/LastAttemptAt/статус. Исчерпание retry переводит
// delivery в терминальный failed — запись сохраняется для ручного
// инспектирования и replay (dead-letter семантика).
type WebhookDelivery struct {
	// ID — уникальный идентификатор delivery.
	ID uuid.UUID `json:"id"`

	// WebhookID — организационный webhook, если destination им является.
	WebhookID *uuid.UUID `json:"webhook_id,omitempty"`

	// JobID — job, породивший событие.
	JobID uuid.UUID `json:"job_id"`

	// URL — destination URL.
	URL string `json:"url"`

	// EventType — тип события.
	EventType EventType `json:"event_type"`

	// Payload — сериализованный JSON payload (именно эти байты подписываются).
	Payload []byte `json:"payload"`

	// PayloadHash — SHA-256 hex payload'а для аудита.
	PayloadHash string `json:"payload_hash"`

	// Status — текущий статус delivery.
	Status DeliveryStatus `json:"status"`

	// Attempts — количество выполненных попыток.
	Attempts int `json:"attempts"`

	// LastAttemptAt — время последней попытки.
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`

	// NextAttemptAt — запланированное время следующей попытки.
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`

	// ResponseStatus — HTTP-код последнего ответа.
	ResponseStatus int `json:"response_status,omitempty"`

	// ResponseBody — тело последнего ответа (усечённое), для диагностики.
	ResponseBody string `json:"response_body,omitempty"`

	// Error — ошибка последней попытки (сеть, таймаут).
	Error string `json:"error,omitempty"`

	// IdempotencyKey — детерминированный отпечаток
	// (organizationId, configurationId, eventType, jobId, targetUrl).
	// Дубликат ключа при создании — no-op.
	IdempotencyKey string `json:"idempotency_key"`

	// CreatedAt — время создания delivery.
	CreatedAt time.Time `json:"created_at"`
}

// RecordAttempt фиксирует результат одной попытки доставки.
func (d *WebhookDelivery) RecordAttempt(status int, body string, errMsg string) {
	now := time.Now()
	d.Attempts++
	d.LastAttemptAt = &now
	d.ResponseStatus = status
	d.ResponseBody = body
	d.Error = errMsg
}

// MarkSuccess переводит delivery в success.
func (d *WebhookDelivery) MarkSuccess() {
	d.Status = DeliveryStatusSuccess
	d.NextAttemptAt = nil
}

// MarkFailed переводит delivery в терминальный failed (dead letter).
func (d *WebhookDelivery) MarkFailed() {
	d.Status = DeliveryStatusFailed
	d.NextAttemptAt = nil
}

// ScheduleNext назначает время следующей попытки.
func (d *WebhookDelivery) ScheduleNext(at time.Time) {
	d.NextAttemptAt = &at
}
