package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики воркера и webhook-доставки.
// Экспортируются через /metrics (promhttp) в main.
var (
	// JobsProcessed — количество обработанных jobs по исходу.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mutate",
		Name:      "jobs_processed_total",
		Help:      "Processed transformation jobs by outcome.",
	}, []string{"outcome"})

	// JobDuration — длительность обработки job.
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mutate",
		Name:      "job_duration_seconds",
		Help:      "End-to-end job processing duration.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// WebhookAttempts — попытки webhook-доставки по результату.
	WebhookAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mutate",
		Name:      "webhook_attempts_total",
		Help:      "Webhook delivery attempts by result.",
	}, []string{"result"})

	// WebhookDeadLettered — deliveries, ушедшие в терминальный failed.
	WebhookDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mutate",
		Name:      "webhook_dead_lettered_total",
		Help:      "Webhook deliveries that exhausted retries.",
	})
)
