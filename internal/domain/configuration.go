package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutputFormat — формат выходного артефакта.
type OutputFormat string

const (
	OutputFormatCSV  OutputFormat = "csv"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatXLSX OutputFormat = "xlsx"
)

// Valid возвращает true для поддерживаемых форматов.
func (f OutputFormat) Valid() bool {
	switch f {
	case OutputFormatCSV, OutputFormatJSON, OutputFormatXLSX:
		return true
	default:
		return false
	}
}

// Configuration — конфигурация трансформации: упорядоченный список
// правил плюс формат вывода.
//
// Конфигурации версионируются: при изменении rules или output_format
// создаётся новая версия, старые версии хранятся для аудита.
// Rules внутри сохранённой версии иммутабельны.
type Configuration struct {
	// ID — уникальный идентификатор конфигурации.
	ID uuid.UUID `json:"id"`

	// OrganizationID — владелец конфигурации.
	OrganizationID uuid.UUID `json:"organization_id"`

	// Name — имя конфигурации (для пользователя).
	Name string `json:"name"`

	// Version — номер версии (1, 2, 3, ...).
	Version int `json:"version"`

	// Rules — упорядоченный список правил. Применяются строго по порядку.
	Rules []Rule `json:"rules"`

	// OutputFormat — формат выходного артефакта.
	OutputFormat OutputFormat `json:"output_format"`

	// WebhookID — явно выбранный организационный webhook (приоритет 2
	// при resolve destination). Nil, если не выбран.
	WebhookID *uuid.UUID `json:"webhook_id,omitempty"`

	// CallbackURL — legacy callback поле конфигурации (приоритет 3).
	CallbackURL string `json:"callback_url,omitempty"`

	// CreatedAt — время создания версии.
	CreatedAt time.Time `json:"created_at"`
}
