package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	"github.com/khyo-labs/mutate/internal/domain"
)

// Префикс значения signature-заголовка.
const signaturePrefix = "sha256="

// Sign вычисляет HMAC-SHA256 подпись ровно тех байт, что уходят
// в теле запроса, и возвращает значение вида "sha256=<hex>".
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature проверяет подпись constant-time сравнением.
//
// Получатели используют её для верификации входящих уведомлений.
func VerifySignature(secret string, body []byte, signature string) bool {
	if !strings.HasPrefix(signature, signaturePrefix) {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// IdempotencyKey — детерминированный отпечаток логического уведомления.
//
// Чистая функция пяти входов: одинаковые входы дают одинаковый ключ,
// любое отличие — другой ключ. Дубликат ключа при создании
// delivery-записи — no-op.
func IdempotencyKey(orgID, configID uuid.UUID, eventType domain.EventType, jobID uuid.UUID, targetURL string) string {
	h := sha256.New()
	h.Write([]byte(orgID.String()))
	h.Write([]byte{'\n'})
	h.Write([]byte(configID.String()))
	h.Write([]byte{'\n'})
	h.Write([]byte(eventType))
	h.Write([]byte{'\n'})
	h.Write([]byte(jobID.String()))
	h.Write([]byte{'\n'})
	h.Write([]byte(targetURL))
	return hex.EncodeToString(h.Sum(nil))
}

// PayloadHash — SHA-256 hex payload'а для аудита.
func PayloadHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
