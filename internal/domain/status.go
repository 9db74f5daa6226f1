package domain

// JobStatus — статус выполнения job.
//
// Жизненный цикл:
//
//	pending → processing → completed
//	                     ↘ failed
//
// Терминальные статусы (completed, failed) иммутабельны —
// job в терминальном статусе больше не меняется.
type JobStatus string

const (
	// JobStatusPending — job создан API-слоем, ожидает воркера.
	JobStatusPending JobStatus = "pending"

	// JobStatusProcessing — job выполняется воркером.
	JobStatusProcessing JobStatus = "processing"

	// JobStatusCompleted — job успешно завершён, артефакт загружен.
	JobStatusCompleted JobStatus = "completed"

	// JobStatusFailed — job завершился с ошибкой.
	JobStatusFailed JobStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный (job завершён).
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// DeliveryStatus — статус webhook delivery.
//
// Жизненный цикл:
//
//	pending → success
//	        ↘ failed (после исчерпания retry; запись сохраняется как dead letter)
type DeliveryStatus string

const (
	// DeliveryStatusPending — delivery создан, попытки ещё идут.
	DeliveryStatusPending DeliveryStatus = "pending"

	// DeliveryStatusSuccess — получатель ответил 2xx.
	DeliveryStatusSuccess DeliveryStatus = "success"

	// DeliveryStatusFailed — все попытки исчерпаны, delivery в dead letter.
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// IsTerminal возвращает true, если delivery завершён.
func (s DeliveryStatus) IsTerminal() bool {
	switch s {
	case DeliveryStatusSuccess, DeliveryStatusFailed:
		return true
	default:
		return false
	}
}
