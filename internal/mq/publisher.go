package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeJobPending MessageType = "job.pending"
)

// Message — envelope сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// JobPendingPayload — payload события о новом job.
//
// fileData — base64 содержимого входного файла; options — свободные
// флаги конвертации (например, evaluateFormulas).
type JobPendingPayload struct {
	JobID           uuid.UUID      `json:"jobId"`
	OrganizationID  uuid.UUID      `json:"organizationId"`
	ConfigurationID uuid.UUID      `json:"configurationId"`
	FileData        string         `json:"fileData"`
	FileName        string         `json:"fileName"`
	ConversionType  string         `json:"conversionType"`
	CallbackURL     string         `json:"callbackUrl,omitempty"`
	Options         map[string]any `json:"options,omitempty"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishJobPending публикует событие о job, ожидающем обработки.
// Потребитель: Worker.
func (p *Publisher) PublishJobPending(ctx context.Context, payload JobPendingPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeJobPending,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	return p.Publish(ctx, ExchangeJobs, RoutingKeyPending, msg)
}
