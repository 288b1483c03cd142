package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook deliveries by provider and outcome (applied/ignored/duplicate/rejected/error).",
		},
		[]string{"provider", "outcome"},
	)

	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment history rows by provider and status.",
		},
		[]string{"provider", "status"},
	)

	reconcileFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_failures_total",
			Help: "Post-commit external sync failures by provider.",
		},
		[]string{"provider"},
	)

	reconcileBacklog = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconcile_backlog",
			Help: "Payment rows still awaiting external sync, as seen by the sweeper.",
		},
	)

	rateLimitRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by the sliding-window limiter per category.",
		},
		[]string{"category"},
	)

	txRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transaction_retries_total",
			Help: "Transient transaction errors retried by the orchestrator.",
		},
	)

	webhookLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_latency_ms",
			Help:    "Webhook handling latency distribution in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600, 3000},
		},
		[]string{"provider"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			webhookEvents, paymentsTotal,
			reconcileFailures, reconcileBacklog,
			rateLimitRejections, txRetries, webhookLatencyMs,
		)
	})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncWebhookEvent(provider, outcome string) {
	webhookEvents.WithLabelValues(norm(provider), norm(outcome)).Inc()
}

func IncPayment(provider, status string) {
	paymentsTotal.WithLabelValues(norm(provider), norm(status)).Inc()
}

func IncReconcileFailure(provider string) {
	reconcileFailures.WithLabelValues(norm(provider)).Inc()
}

func SetReconcileBacklog(n int) {
	reconcileBacklog.Set(float64(n))
}

func IncRateLimited(category string) {
	rateLimitRejections.WithLabelValues(norm(category)).Inc()
}

func IncTxRetry() { txRetries.Inc() }

func ObserveWebhookLatency(provider string, ms float64) {
	webhookLatencyMs.WithLabelValues(norm(provider)).Observe(ms)
}
