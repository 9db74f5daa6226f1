package webhook

import (
	"errors"
	"fmt"
)

// Ошибки webhook-доставки.
var (
	// ErrNoDestination — ни один кандидат priority chain не прошёл валидацию.
	ErrNoDestination = errors.New("no valid destination")

	// ErrInvalidURL — destination URL не прошёл валидацию.
	// Не retryable: кандидат пропускается, следующий в chain пробуется.
	ErrInvalidURL = errors.New("invalid destination url")

	// ErrRetriesExhausted — все попытки доставки исчерпаны.
	ErrRetriesExhausted = errors.New("delivery retries exhausted")

	// ErrDeliveryNotReplayable — replay возможен только для failed deliveries.
	ErrDeliveryNotReplayable = errors.New("delivery is not replayable")
)

// DeliveryError — ошибка одной попытки доставки.
//
// Retryable: попытка повторяется по backoff-политике до maxRetries.
type DeliveryError struct {
	// StatusCode — HTTP-код ответа (0 для сетевых ошибок и таймаутов).
	StatusCode int

	// Body — тело ответа (усечённое), для диагностики.
	Body string

	// Err — исходная сетевая ошибка, если была.
	Err error
}

// Error реализует error.
func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("delivery failed: %v", e.Err)
	}
	return fmt.Sprintf("delivery failed: HTTP %d", e.StatusCode)
}

// Unwrap возвращает исходную ошибку.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}
