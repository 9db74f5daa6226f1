package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job — одна задача трансформации spreadsheet-файла.
//
// Job создаётся API-слоем в статусе pending и публикуется в очередь.
// Все дальнейшие переходы статуса принадлежат воркеру.
type Job struct {
	// ID — уникальный идентификатор job.
	ID uuid.UUID `json:"id"`

	// OrganizationID — владелец job (workspace).
	OrganizationID uuid.UUID `json:"organization_id"`

	// ConfigurationID — конфигурация с правилами трансформации.
	ConfigurationID uuid.UUID `json:"configuration_id"`

	// Status — текущий статус job.
	Status JobStatus `json:"status"`

	// FileName — оригинальное имя входного файла.
	FileName string `json:"file_name"`

	// ConversionType — тип конвертации (например, "XLSX_TO_CSV").
	ConversionType string `json:"conversion_type,omitempty"`

	// CallbackURL — per-job callback, высший приоритет при resolve destination.
	CallbackURL string `json:"callback_url,omitempty"`

	// Progress — грубый прогресс выполнения (0..100).
	// Обновляется воркером на milestone'ах, best-effort.
	Progress int `json:"progress"`

	// Metadata — детали выполнения (ключи артефактов, лог, ошибка).
	Metadata JobMetadata `json:"metadata"`

	// CreatedAt — время создания job.
	CreatedAt time.Time `json:"created_at"`
}

// JobMetadata — детали выполнения job.
type JobMetadata struct {
	// StartedAt — время начала обработки воркером.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время завершения (completed или failed).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// InputKey — ключ архивированного входного файла в blob store.
	InputKey string `json:"input_key,omitempty"`

	// InputURL — presigned URL входного файла.
	InputURL string `json:"input_url,omitempty"`

	// OutputKey — ключ выходного артефакта в blob store.
	OutputKey string `json:"output_key,omitempty"`

	// OutputURL — presigned URL выходного артефакта.
	OutputURL string `json:"output_url,omitempty"`

	// ExecutionLog — трейс применения правил (полный или усечённый при ошибке).
	ExecutionLog []string `json:"execution_log,omitempty"`

	// Error — человекочитаемое сообщение об ошибке.
	Error string `json:"error,omitempty"`

	// FileSize — размер выходного артефакта в байтах.
	FileSize int64 `json:"file_size,omitempty"`
}

// Duration возвращает продолжительность обработки.
func (j *Job) Duration() time.Duration {
	if j.Metadata.StartedAt == nil || j.Metadata.CompletedAt == nil {
		return 0
	}
	return j.Metadata.CompletedAt.Sub(*j.Metadata.StartedAt)
}

// IsFinished возвращает true, если job в терминальном статусе.
func (j *Job) IsFinished() bool {
	return j.Status.IsTerminal()
}

// MarkProcessing переводит job в processing.
// Возвращает false, если job уже в терминальном статусе.
func (j *Job) MarkProcessing() bool {
	if j.Status.IsTerminal() {
		return false
	}
	now := time.Now()
	j.Status = JobStatusProcessing
	j.Metadata.StartedAt = &now
	return true
}

// MarkCompleted переводит job в completed с execution log.
// Возвращает false, если job уже в терминальном статусе.
func (j *Job) MarkCompleted(executionLog []string) bool {
	if j.Status.IsTerminal() {
		return false
	}
	now := time.Now()
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.Metadata.CompletedAt = &now
	j.Metadata.ExecutionLog = executionLog
	return true
}

// MarkFailed переводит job в failed с сообщением об ошибке
// и частичным execution log (может быть nil).
// Возвращает false, если job уже в терминальном статусе.
func (j *Job) MarkFailed(errMsg string, executionLog []string) bool {
	if j.Status.IsTerminal() {
		return false
	}
	now := time.Now()
	j.Status = JobStatusFailed
	j.Metadata.CompletedAt = &now
	j.Metadata.Error = errMsg
	if executionLog != nil {
		j.Metadata.ExecutionLog = executionLog
	}
	return true
}
