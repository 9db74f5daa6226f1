// Package worker — обработка файловых трансформаций: потребление
// jobs из очереди, прогон workbook через rule engine, выгрузка
// результата и уведомление получателей.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/khyo-labs/mutate/internal/billing"
	"github.com/khyo-labs/mutate/internal/domain"
	"github.com/khyo-labs/mutate/internal/mq"
	"github.com/khyo-labs/mutate/internal/rules"
	"github.com/khyo-labs/mutate/internal/storage"
)

// Default configuration values.
const (
	defaultPrefetch   = 5
	defaultJobTimeout = 5 * time.Minute

	// Базовый лимит доставок сообщения; для больших входных файлов
	// лимит выше — см. maxAttemptsFor.
	defaultMaxAttempts = 3
	largeFileAttempts  = 5
	largeFileThreshold = 50 * 1024 * 1024
)

// JobStore — персистентность jobs, нужная pipeline'у.
type JobStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error
}

// ConfigStore — доступ к конфигурациям трансформаций.
type ConfigStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Configuration, error)
}

// Notifier — доставка уведомления о результате job.
type Notifier interface {
	Dispatch(ctx context.Context, job *domain.Job, cfg *domain.Configuration, payload domain.WebhookPayload) error
}

// Worker выполняет jobs трансформации.
//
// Worker — stateless компонент системы, который:
//   - Получает jobs из очереди RabbitMQ (jobs.pending)
//   - Декодирует входной файл и применяет rules конфигурации
//   - Выгружает результат в blob storage и выдаёт presigned URL
//   - Уведомляет получателей через webhook dispatcher
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
type Worker struct {
	jobs    JobStore
	configs ConfigStore

	store      storage.BlobStore
	engine     *rules.Engine
	dispatcher Notifier
	usage      billing.Tracker

	conn     *mq.Connection
	consumer *mq.Consumer

	jobTimeout  time.Duration
	maxAttempts int

	// attempts — счётчики доставок по job ID для dead-letter cap.
	// Состояние локально для экземпляра: после рестарта счёт
	// начинается заново, что лишь отодвигает dead-letter.
	attempts   map[uuid.UUID]int
	attemptsMu sync.Mutex

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Jobs    JobStore
	Configs ConfigStore

	Store      storage.BlobStore
	Engine     *rules.Engine
	Dispatcher Notifier
	Usage      billing.Tracker

	Conn *mq.Connection

	// JobTimeout — лимит обработки одного job (default: 5m).
	JobTimeout time.Duration

	// MaxAttempts — базовый лимит доставок сообщения (default: 3).
	MaxAttempts int

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := cfg.Engine
	if engine == nil {
		engine = rules.NewEngine()
	}

	usage := cfg.Usage
	if usage == nil {
		usage = billing.NoopTracker{}
	}

	return &Worker{
		jobs:        cfg.Jobs,
		configs:     cfg.Configs,
		store:       cfg.Store,
		engine:      engine,
		dispatcher:  cfg.Dispatcher,
		usage:       usage,
		conn:        cfg.Conn,
		jobTimeout:  jobTimeout,
		maxAttempts: maxAttempts,
		attempts:    make(map[uuid.UUID]int),
		logger:      logger,
	}
}

// Start запускает Worker: consumer на jobs.pending.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"job_timeout", w.jobTimeout,
		"max_attempts", w.maxAttempts,
	)

	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueJobsPending),
		Handler:  w.handleJobPending,
		Prefetch: defaultPrefetch,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("job consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// maxAttemptsFor возвращает лимит доставок для файла данного размера.
// Большие файлы падают по таймауту чаще — им даётся больше попыток.
func (w *Worker) maxAttemptsFor(fileSize int) int {
	if fileSize > largeFileThreshold {
		return largeFileAttempts
	}
	return w.maxAttempts
}

// trackAttempt инкрементирует счётчик доставок job и сообщает,
// исчерпан ли лимит.
func (w *Worker) trackAttempt(jobID uuid.UUID, fileSize int) (int, bool) {
	w.attemptsMu.Lock()
	defer w.attemptsMu.Unlock()
	w.attempts[jobID]++
	n := w.attempts[jobID]
	return n, n > w.maxAttemptsFor(fileSize)
}

// forgetAttempts сбрасывает счётчик после терминального исхода job.
func (w *Worker) forgetAttempts(jobID uuid.UUID) {
	w.attemptsMu.Lock()
	defer w.attemptsMu.Unlock()
	delete(w.attempts, jobID)
}
