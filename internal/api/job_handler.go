package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/khyo-labs/mutate/internal/domain"
	"github.com/khyo-labs/mutate/internal/mq"
)

// CreateJob создаёт job трансформации и публикует его в очередь.
// POST /api/v1/jobs
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.FileName == "" {
		BadRequest(w, "fileName is required")
		return
	}
	if req.OrganizationID == uuid.Nil || req.ConfigurationID == uuid.Nil {
		BadRequest(w, "organizationId and configurationId are required")
		return
	}
	if _, err := base64.StdEncoding.DecodeString(req.FileData); err != nil {
		BadRequest(w, "fileData must be base64")
		return
	}

	// Конфигурация должна существовать до постановки в очередь.
	cfg, err := h.configs.GetByID(r.Context(), req.ConfigurationID)
	if HandleRepoError(w, h.logger, err, "configuration not found") {
		return
	}
	if cfg.OrganizationID != req.OrganizationID {
		NotFound(w, "configuration not found")
		return
	}

	job := &domain.Job{
		ID:              uuid.New(),
		OrganizationID:  req.OrganizationID,
		ConfigurationID: req.ConfigurationID,
		Status:          domain.JobStatusPending,
		FileName:        req.FileName,
		ConversionType:  req.ConversionType,
		CallbackURL:     req.CallbackURL,
		CreatedAt:       time.Now(),
	}

	if err := h.jobs.Create(r.Context(), job); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	payload := mq.JobPendingPayload{
		JobID:           job.ID,
		OrganizationID:  job.OrganizationID,
		ConfigurationID: job.ConfigurationID,
		FileData:        req.FileData,
		FileName:        job.FileName,
		ConversionType:  job.ConversionType,
		CallbackURL:     job.CallbackURL,
		Options:         req.Options,
	}
	if err := h.publisher.PublishJobPending(r.Context(), payload); err != nil {
		// Job остаётся pending в БД; без события воркер его не
		// увидит, поэтому это ошибка запроса.
		h.logger.Error("failed to publish job.pending", "job_id", job.ID, "error", err)
		InternalError(w, h.logger, err)
		return
	}

	Created(w, JobFromDomain(*job))
}

// GetJob возвращает job по ID.
// GET /api/v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "job not found") {
		return
	}

	Success(w, JobFromDomain(*job))
}
