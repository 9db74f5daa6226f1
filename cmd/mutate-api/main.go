// Mutate API — HTTP-вход сервиса трансформаций.
//
// Принимает jobs (файл + конфигурация), публикует их в очередь и
// отдаёт статус; управляет конфигурациями и webhook deliveries.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/khyo-labs/mutate/internal/api"
	"github.com/khyo-labs/mutate/internal/mq"
	"github.com/khyo-labs/mutate/internal/repo"
	"github.com/khyo-labs/mutate/internal/telemetry"
	"github.com/khyo-labs/mutate/internal/webhook"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mutate_api_http_requests_total",
		Help: "Total HTTP requests handled by mutate_api",
	})
)

func main() {
	_ = godotenv.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting mutate-api")

	// Подключаемся к базе данных
	pool, err := repo.NewPool(context.Background())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	publisher := mq.NewPublisher(mqConn, logger)

	// Dispatcher нужен API только для replay dead-letter deliveries
	dispatcher := webhook.NewDispatcher(webhook.Config{
		Deliveries:     deliveryRepo,
		Webhooks:       webhookRepo,
		AllowLocalhost: os.Getenv("WEBHOOK_ALLOW_LOCALHOST") == "true",
		Logger:         logger,
	})

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Jobs:       jobRepo,
		Configs:    configRepo,
		Deliveries: deliveryRepo,
		Webhooks:   webhookRepo,
		Publisher:  publisher,
		Replayer:   dispatcher,
		Logger:     logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
