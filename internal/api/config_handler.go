package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/khyo-labs/mutate/internal/domain"
)

// CreateConfiguration создаёт новую версию конфигурации.
// Конфигурации иммутабельны: изменение — всегда новая версия,
// прежние остаются доступны по номеру.
// POST /api/v1/configurations
func (h *Handler) CreateConfiguration(w http.ResponseWriter, r *http.Request) {
	var req CreateConfigurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if req.OrganizationID == uuid.Nil {
		BadRequest(w, "organizationId is required")
		return
	}
	if !req.OutputFormat.Valid() {
		BadRequest(w, "invalid outputFormat")
		return
	}

	cfg := &domain.Configuration{
		ID:             uuid.New(),
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Rules:          req.Rules,
		OutputFormat:   req.OutputFormat,
		WebhookID:      req.WebhookID,
		CallbackURL:    req.CallbackURL,
	}

	if err := h.configs.CreateVersion(r.Context(), cfg); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, ConfigFromDomain(*cfg))
}

// GetConfiguration возвращает конфигурацию: последнюю версию или
// конкретную через ?version=N.
// GET /api/v1/configurations/{id}
func (h *Handler) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid configuration id")
		return
	}

	var cfg *domain.Configuration
	if versionStr := r.URL.Query().Get("version"); versionStr != "" {
		version, err := strconv.Atoi(versionStr)
		if err != nil || version < 1 {
			BadRequest(w, "invalid version")
			return
		}
		cfg, err = h.configs.GetVersion(r.Context(), id, version)
		if HandleRepoError(w, h.logger, err, "configuration version not found") {
			return
		}
	} else {
		cfg, err = h.configs.GetByID(r.Context(), id)
		if HandleRepoError(w, h.logger, err, "configuration not found") {
			return
		}
	}

	Success(w, ConfigFromDomain(*cfg))
}

// ListOrganizationWebhooks возвращает webhook-endpoint'ы организации.
// GET /api/v1/organizations/{id}/webhooks
func (h *Handler) ListOrganizationWebhooks(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid organization id")
		return
	}

	webhooks, err := h.webhooks.ListByOrganization(r.Context(), orgID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]WebhookResponse, len(webhooks))
	for i, wh := range webhooks {
		result[i] = WebhookFromDomain(wh)
	}

	List(w, result, len(result))
}
