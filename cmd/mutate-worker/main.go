// Mutate Worker — выполняет jobs трансформации spreadsheet-файлов.
//
// Worker:
//   - Получает jobs из RabbitMQ
//   - Применяет rules конфигурации к workbook
//   - Выгружает результат в blob storage
//   - Уведомляет получателей через webhook с retry
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/khyo-labs/mutate/internal/billing"
	"github.com/khyo-labs/mutate/internal/mq"
	"github.com/khyo-labs/mutate/internal/repo"
	"github.com/khyo-labs/mutate/internal/storage"
	"github.com/khyo-labs/mutate/internal/telemetry"
	"github.com/khyo-labs/mutate/internal/webhook"
	"github.com/khyo-labs/mutate/internal/worker"
)

func main() {
	// .env для локальной разработки; в проде переменные приходят
	// из окружения
	_ = godotenv.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting mutate-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	jobRepo := repo.NewJobRepo(pool)
	configRepo := repo.NewConfigRepo(pool)
	webhookRepo := repo.NewWebhookRepo(pool)
	deliveryRepo := repo.NewDeliveryRepo(pool)

	// RabbitMQ
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	// Создаём топологию
	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	// Blob storage: S3 при наличии S3_BUCKET, иначе in-memory
	// (подходит только для разработки)
	var store storage.BlobStore
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, os.Getenv("S3_REGION"), bucket, os.Getenv("S3_PREFIX"))
		if err != nil {
			logger.Error("failed to init S3 storage", "error", err)
			os.Exit(1)
		}
		store = s3Store
		logger.Info("S3 storage ready", "bucket", bucket)
	} else {
		store = storage.NewMemoryStore()
		logger.Warn("S3_BUCKET not set, using in-memory storage")
	}

	// Webhook dispatcher + sweeper
	dispatcher := webhook.NewDispatcher(webhook.Config{
		Deliveries:     deliveryRepo,
		Webhooks:       webhookRepo,
		AllowLocalhost: os.Getenv("WEBHOOK_ALLOW_LOCALHOST") == "true",
		Logger:         logger,
	})

	sweeper := webhook.NewSweeper(webhook.SweeperConfig{
		Dispatcher: dispatcher,
		Deliveries: deliveryRepo,
		Logger:     logger,
	})
	if err := sweeper.Start(ctx); err != nil {
		logger.Error("failed to start delivery sweeper", "error", err)
		os.Exit(1)
	}

	// Создаём worker
	w := worker.New(worker.Config{
		Jobs:       jobRepo,
		Configs:    configRepo,
		Store:      store,
		Dispatcher: dispatcher,
		Usage:      billing.NewPgTracker(pool),
		Conn:       mqConn,
		Logger:     logger,
	})

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем worker и sweeper
	w.Stop()
	sweeper.Stop()
	logger.Info("mutate-worker stopped")
}
