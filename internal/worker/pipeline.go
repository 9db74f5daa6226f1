package worker

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/khyo-labs/mutate/internal/billing"
	"github.com/khyo-labs/mutate/internal/domain"
	"github.com/khyo-labs/mutate/internal/mq"
	"github.com/khyo-labs/mutate/internal/repo"
	"github.com/khyo-labs/mutate/internal/telemetry"
	"github.com/khyo-labs/mutate/internal/workbook"
)

// presignTTL — срок жизни presigned URL на артефакты.
const presignTTL = 24 * time.Hour

// Milestones прогресса job.
const (
	progressStarted   = 10
	progressConfig    = 20
	progressDecoded   = 30
	progressTransform = 70
	progressEncoded   = 90
)

// handleJobPending — handler сообщений jobs.pending.
//
// Возврат nil — ack (включая терминальные провалы job: retry не
// поможет). Ошибка, обёрнутая в mq.ErrDeadLetter — nack в DLQ.
// Любая другая ошибка — requeue; лимит redeliveries отслеживается
// локально, при превышении сообщение уходит в DLQ, а job помечается
// failed.
func (w *Worker) handleJobPending(ctx context.Context, msg *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.JobPendingPayload](&msg.Message)
	if err != nil {
		return fmt.Errorf("%w: %v", mq.ErrDeadLetter, errors.Join(ErrInvalidPayload, err))
	}

	raw, err := base64.StdEncoding.DecodeString(payload.FileData)
	if err != nil {
		w.failJobBestEffort(ctx, payload.JobID, "invalid base64 file data")
		return fmt.Errorf("%w: decode file data: %v", mq.ErrDeadLetter, err)
	}

	logger := telemetry.WithJobID(w.logger, payload.JobID.String())

	attempt, exceeded := w.trackAttempt(payload.JobID, len(raw))
	if exceeded {
		logger.Error("job exceeded redelivery limit, dead-lettering",
			"attempts", attempt,
			"file_size", len(raw),
		)
		w.failJobBestEffort(ctx, payload.JobID, "processing attempts exhausted")
		w.forgetAttempts(payload.JobID)
		return fmt.Errorf("%w: %d attempts", mq.ErrDeadLetter, attempt)
	}

	err = w.runProtected(ctx, logger, payload, raw)
	if err != nil {
		logger.Error("job processing failed", "attempt", attempt, "error", err)
		return err
	}

	w.forgetAttempts(payload.JobID)
	return nil
}

// runProtected оборачивает processJob таймаутом и panic recovery.
// Panic в правиле или кодеке не должен ронять consumer: job
// помечается failed, сообщение уходит в DLQ.
func (w *Worker) runProtected(ctx context.Context, logger *slog.Logger, payload mq.JobPendingPayload, raw []byte) (err error) {
	ctx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic during job processing", "panic", r)
			w.failJobBestEffort(ctx, payload.JobID, fmt.Sprintf("internal error: %v", r))
			err = fmt.Errorf("%w: panic: %v", mq.ErrDeadLetter, r)
		}
	}()

	start := time.Now()
	err = w.processJob(ctx, logger, payload, raw)

	telemetry.JobDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.JobsProcessed.WithLabelValues("error").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrJobTimeout, err)
		}
		return err
	}

	telemetry.JobsProcessed.WithLabelValues("ok").Inc()
	return nil
}

// processJob выполняет полный цикл обработки одного job.
//
// Терминальные провалы (конфигурация не найдена, битый файл,
// ошибка правила) помечают job failed, уведомляют получателей и
// возвращают nil: сообщение подтверждается. Инфраструктурные
// ошибки (БД, storage) возвращаются наружу для requeue.
func (w *Worker) processJob(ctx context.Context, logger *slog.Logger, payload mq.JobPendingPayload, raw []byte) error {
	job, err := w.jobs.GetByID(ctx, payload.JobID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Warn("job not found, dropping message")
			return nil
		}
		return fmt.Errorf("load job: %w", err)
	}

	if job.IsFinished() {
		logger.Info("job already finished, skipping", "status", job.Status)
		return nil
	}

	job.MarkProcessing()
	if err := w.jobs.Update(ctx, job); err != nil {
		if errors.Is(err, repo.ErrTerminalState) {
			logger.Info("job finished concurrently, skipping")
			return nil
		}
		return fmt.Errorf("mark processing: %w", err)
	}
	w.progress(ctx, job.ID, progressStarted)

	cfg, err := w.configs.GetByID(ctx, payload.ConfigurationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return w.failJob(ctx, logger, job, nil,
				fmt.Sprintf("%v: %s", ErrConfigurationNotFound, payload.ConfigurationID), nil)
		}
		return fmt.Errorf("load configuration: %w", err)
	}
	w.progress(ctx, job.ID, progressConfig)

	// Архивируем входной файл. Best-effort: недоступность архива
	// не блокирует трансформацию.
	w.archiveInput(ctx, logger, job, payload.FileName, raw)

	state, err := workbook.Decode(raw, payload.FileName, evaluateFormulasOption(payload.Options))
	if err != nil {
		return w.failJob(ctx, logger, job, cfg,
			fmt.Sprintf("failed to read input file: %v", err), nil)
	}
	w.progress(ctx, job.ID, progressDecoded)

	state, logLines, err := w.engine.Apply(ctx, state, cfg.Rules)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			// Бюджет времени исчерпан: job терминально failed и
			// получатели уведомлены, но ошибка уходит наружу, чтобы
			// сообщение не подтвердилось как успех.
			if ferr := w.failJob(ctx, logger, job, cfg, "processing timed out", logLines); ferr != nil {
				return ferr
			}
			return ctx.Err()
		}
		if ctx.Err() != nil {
			// Shutdown: сообщение уходит в requeue, job будет
			// переобработан после redelivery.
			return ctx.Err()
		}
		return w.failJob(ctx, logger, job, cfg, err.Error(), logLines)
	}
	w.progress(ctx, job.ID, progressTransform)

	output, err := workbook.Encode(state, cfg.OutputFormat)
	if err != nil {
		return w.failJob(ctx, logger, job, cfg,
			fmt.Sprintf("failed to encode output: %v", err), logLines)
	}
	w.progress(ctx, job.ID, progressEncoded)

	outputKey := fmt.Sprintf("jobs/%s/output/result%s", job.ID, workbook.Extension(cfg.OutputFormat))
	if err := w.store.Upload(ctx, outputKey, output, workbook.ContentType(cfg.OutputFormat)); err != nil {
		return fmt.Errorf("upload output: %w", err)
	}
	job.Metadata.OutputKey = outputKey
	job.Metadata.FileSize = int64(len(output))

	if url, err := w.store.Presign(ctx, outputKey, presignTTL); err != nil {
		logger.Warn("failed to presign output", "key", outputKey, "error", err)
	} else {
		job.Metadata.OutputURL = url
	}

	job.MarkCompleted(logLines)
	if err := w.jobs.Update(ctx, job); err != nil {
		if errors.Is(err, repo.ErrTerminalState) {
			logger.Info("job finished concurrently, skipping notification")
			return nil
		}
		return fmt.Errorf("mark completed: %w", err)
	}

	logger.Info("job completed",
		"duration", job.Duration(),
		"output_key", outputKey,
		"output_size", len(output),
	)

	w.recordUsage(ctx, logger, job, true)
	w.notify(job, cfg)
	return nil
}

// failJob помечает job failed, пишет usage и уведомляет получателей.
// Работает и без конфигурации: destination может задавать сам job.
// Возвращает nil: терминальный провал подтверждает сообщение.
func (w *Worker) failJob(ctx context.Context, logger *slog.Logger, job *domain.Job, cfg *domain.Configuration, errMsg string, logLines []string) error {
	// Контекст job мог истечь, отметка провала получает свой срок.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	job.MarkFailed(errMsg, logLines)
	if err := w.jobs.Update(ctx, job); err != nil && !errors.Is(err, repo.ErrTerminalState) {
		return fmt.Errorf("mark failed: %w", err)
	}

	logger.Warn("job failed", "error", errMsg)

	w.recordUsage(ctx, logger, job, false)
	w.notify(job, cfg)
	return nil
}

// failJobBestEffort помечает job failed и уведомляет получателей,
// когда полноценный pipeline невозможен (битый payload, исчерпанные
// попытки). Ошибки глотаются.
func (w *Worker) failJobBestEffort(ctx context.Context, jobID uuid.UUID, errMsg string) {
	// Исходный контекст мог истечь — даём отметке свой срок.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	job, err := w.jobs.GetByID(ctx, jobID)
	if err != nil {
		return
	}
	if !job.MarkFailed(errMsg, nil) {
		return
	}
	if err := w.jobs.Update(ctx, job); err != nil {
		if !errors.Is(err, repo.ErrTerminalState) {
			w.logger.Warn("failed to mark job failed", "job_id", jobID, "error", err)
		}
		return
	}
	w.notify(job, nil)
}

// archiveInput сохраняет копию входного файла в blob store.
func (w *Worker) archiveInput(ctx context.Context, logger *slog.Logger, job *domain.Job, fileName string, raw []byte) {
	key := fmt.Sprintf("jobs/%s/input/%s", job.ID, path.Base(fileName))
	if err := w.store.Upload(ctx, key, raw, "application/octet-stream"); err != nil {
		logger.Warn("failed to archive input file", "key", key, "error", err)
		return
	}
	job.Metadata.InputKey = key

	if url, err := w.store.Presign(ctx, key, presignTTL); err == nil {
		job.Metadata.InputURL = url
	}
}

// notify отправляет уведомление о результате job в отдельной
// горутине: retry доставки (до минут backoff'а) не должен держать
// AMQP-сообщение неподтверждённым.
func (w *Worker) notify(job *domain.Job, cfg *domain.Configuration) {
	if w.dispatcher == nil {
		return
	}

	payload := buildWebhookPayload(job)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		// Доставка переживает отмену контекста job.
		ctx := context.WithoutCancel(context.Background())
		if err := w.dispatcher.Dispatch(ctx, job, cfg, payload); err != nil {
			w.logger.Warn("webhook dispatch failed",
				"job_id", job.ID,
				"error", err,
			)
		}
	}()
}

// buildWebhookPayload собирает wire-payload уведомления из job.
func buildWebhookPayload(job *domain.Job) domain.WebhookPayload {
	payload := domain.WebhookPayload{
		JobID:            job.ID,
		Status:           job.Status,
		OrganizationID:   job.OrganizationID,
		ConfigurationID:  job.ConfigurationID,
		DownloadURL:      job.Metadata.OutputURL,
		Error:            job.Metadata.Error,
		ExecutionLog:     job.Metadata.ExecutionLog,
		FileSize:         job.Metadata.FileSize,
		OriginalFileName: job.FileName,
	}
	if job.Metadata.CompletedAt != nil {
		payload.CompletedAt = *job.Metadata.CompletedAt
	}
	return payload
}

// recordUsage пишет usage-событие для billing. Ошибка учёта
// логируется и глотается: исход job важнее биллинга.
func (w *Worker) recordUsage(ctx context.Context, logger *slog.Logger, job *domain.Job, success bool) {
	event := billing.UsageEvent{
		OrganizationID: job.OrganizationID,
		JobID:          job.ID,
		ConversionType: job.ConversionType,
		FileSizeBytes:  job.Metadata.FileSize,
		Success:        success,
		DurationMs:     job.Duration().Milliseconds(),
	}
	if err := w.usage.RecordUsage(ctx, event); err != nil {
		logger.Warn("failed to record usage", "error", err)
	}
}

// progress обновляет milestone прогресса. Best-effort.
func (w *Worker) progress(ctx context.Context, jobID uuid.UUID, pct int) {
	if err := w.jobs.UpdateProgress(ctx, jobID, pct); err != nil {
		w.logger.Debug("failed to update progress",
			"job_id", jobID,
			"progress", pct,
			"error", err,
		)
	}
}

// evaluateFormulasOption читает флаг evaluateFormulas из options
// сообщения.
func evaluateFormulasOption(options map[string]any) bool {
	v, ok := options["evaluateFormulas"]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
