package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/khyo-labs/mutate/internal/domain"
)

// CreateJobRequest — запрос на создание job трансформации.
// fileData — base64 содержимого входного файла.
type CreateJobRequest struct {
	OrganizationID  uuid.UUID      `json:"organizationId"`
	ConfigurationID uuid.UUID      `json:"configurationId"`
	FileName        string         `json:"fileName"`
	FileData        string         `json:"fileData"`
	ConversionType  string         `json:"conversionType,omitempty"`
	CallbackURL     string         `json:"callbackUrl,omitempty"`
	Options         map[string]any `json:"options,omitempty"`
}

// JobResponse — представление job в API.
type JobResponse struct {
	ID              uuid.UUID        `json:"id"`
	OrganizationID  uuid.UUID        `json:"organizationId"`
	ConfigurationID uuid.UUID        `json:"configurationId"`
	Status          domain.JobStatus `json:"status"`
	FileName        string           `json:"fileName"`
	ConversionType  string           `json:"conversionType,omitempty"`
	Progress        int              `json:"progress"`
	DownloadURL     string           `json:"downloadUrl,omitempty"`
	Error           string           `json:"error,omitempty"`
	ExecutionLog    []string         `json:"executionLog,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	StartedAt       *time.Time       `json:"startedAt,omitempty"`
	CompletedAt     *time.Time       `json:"completedAt,omitempty"`
}

// JobFromDomain преобразует domain.Job в JobResponse.
func JobFromDomain(job domain.Job) JobResponse {
	return JobResponse{
		ID:              job.ID,
		OrganizationID:  job.OrganizationID,
		ConfigurationID: job.ConfigurationID,
		Status:          job.Status,
		FileName:        job.FileName,
		ConversionType:  job.ConversionType,
		Progress:        job.Progress,
		DownloadURL:     job.Metadata.OutputURL,
		Error:           job.Metadata.Error,
		ExecutionLog:    job.Metadata.ExecutionLog,
		CreatedAt:       job.CreatedAt,
		StartedAt:       job.Metadata.StartedAt,
		CompletedAt:     job.Metadata.CompletedAt,
	}
}

// CreateConfigurationRequest — запрос на создание версии конфигурации.
type CreateConfigurationRequest struct {
	OrganizationID uuid.UUID           `json:"organizationId"`
	Name           string              `json:"name"`
	Rules          []domain.Rule       `json:"rules"`
	OutputFormat   domain.OutputFormat `json:"outputFormat"`
	WebhookID      *uuid.UUID          `json:"webhookId,omitempty"`
	CallbackURL    string              `json:"callbackUrl,omitempty"`
}

// ConfigurationResponse — представление конфигурации в API.
type ConfigurationResponse struct {
	ID             uuid.UUID           `json:"id"`
	OrganizationID uuid.UUID           `json:"organizationId"`
	Name           string              `json:"name"`
	Version        int                 `json:"version"`
	Rules          []domain.Rule       `json:"rules"`
	OutputFormat   domain.OutputFormat `json:"outputFormat"`
	WebhookID      *uuid.UUID          `json:"webhookId,omitempty"`
	CallbackURL    string              `json:"callbackUrl,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
}

// ConfigFromDomain преобразует domain.Configuration в ConfigurationResponse.
func ConfigFromDomain(cfg domain.Configuration) ConfigurationResponse {
	return ConfigurationResponse{
		ID:             cfg.ID,
		OrganizationID: cfg.OrganizationID,
		Name:           cfg.Name,
		Version:        cfg.Version,
		Rules:          cfg.Rules,
		OutputFormat:   cfg.OutputFormat,
		WebhookID:      cfg.WebhookID,
		CallbackURL:    cfg.CallbackURL,
		CreatedAt:      cfg.CreatedAt,
	}
}

// DeliveryResponse — представление webhook delivery в API.
// Payload не включается: он доступен по ключу PayloadHash в аудите.
type DeliveryResponse struct {
	ID             uuid.UUID             `json:"id"`
	WebhookID      *uuid.UUID            `json:"webhookId,omitempty"`
	JobID          uuid.UUID             `json:"jobId"`
	URL            string                `json:"url"`
	EventType      domain.EventType      `json:"eventType"`
	Status         domain.DeliveryStatus `json:"status"`
	Attempts       int                   `json:"attempts"`
	LastAttemptAt  *time.Time            `json:"lastAttemptAt,omitempty"`
	NextAttemptAt  *time.Time            `json:"nextAttemptAt,omitempty"`
	ResponseStatus int                   `json:"responseStatus,omitempty"`
	Error          string                `json:"error,omitempty"`
	PayloadHash    string                `json:"payloadHash"`
	CreatedAt      time.Time             `json:"createdAt"`
}

// DeliveryFromDomain преобразует domain.WebhookDelivery в DeliveryResponse.
func DeliveryFromDomain(d domain.WebhookDelivery) DeliveryResponse {
	return DeliveryResponse{
		ID:             d.ID,
		WebhookID:      d.WebhookID,
		JobID:          d.JobID,
		URL:            d.URL,
		EventType:      d.EventType,
		Status:         d.Status,
		Attempts:       d.Attempts,
		LastAttemptAt:  d.LastAttemptAt,
		NextAttemptAt:  d.NextAttemptAt,
		ResponseStatus: d.ResponseStatus,
		Error:          d.Error,
		PayloadHash:    d.PayloadHash,
		CreatedAt:      d.CreatedAt,
	}
}

// WebhookResponse — представление webhook-endpoint'а в API.
// Secret никогда не возвращается.
type WebhookResponse struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	Name           string     `json:"name"`
	URL            string     `json:"url"`
	IsActive       bool       `json:"isActive"`
	LastUsedAt     *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// WebhookFromDomain преобразует domain.Webhook в WebhookResponse.
func WebhookFromDomain(wh domain.Webhook) WebhookResponse {
	return WebhookResponse{
		ID:             wh.ID,
		OrganizationID: wh.OrganizationID,
		Name:           wh.Name,
		URL:            wh.URL,
		IsActive:       wh.IsActive,
		LastUsedAt:     wh.LastUsedAt,
		CreatedAt:      wh.CreatedAt,
	}
}
