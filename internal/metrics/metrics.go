package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/devarispbrown/gtsd-sub009/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	RemindersSent   *prometheus.CounterVec
	RemindersFailed *prometheus.CounterVec
	IdempotentNoops *prometheus.CounterVec
	DeliveryLatency *prometheus.HistogramVec
	QueueDepth      prometheus.Gauge
	WebhookRequests *prometheus.CounterVec
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RemindersSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "Total number of reminders accepted by the gateway.",
		}, []string{"message_type"}),

		RemindersFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminders_failed_total",
			Help: "Total number of permanently failed reminders (terminal rejection or retries exhausted).",
		}, []string{"message_type"}),

		IdempotentNoops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminder_idempotent_noops_total",
			Help: "Jobs completed without sending: duplicate delivery, opt-out, or deactivation after enqueue.",
		}, []string{"message_type"}),

		DeliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reminder_delivery_seconds",
			Help:    "End-to-end processing latency from dequeue to gateway ack.",
			Buckets: prometheus.DefBuckets,
		}, []string{"message_type"}),

		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reminder_queue_depth",
			Help: "Current number of pending and leased delivery jobs.",
		}),

		WebhookRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_requests_total",
			Help: "Inbound webhook requests by outcome (ok, invalid_signature, rate_limited, error).",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.RemindersSent,
		m.RemindersFailed,
		m.IdempotentNoops,
		m.DeliveryLatency,
		m.QueueDepth,
		m.WebhookRequests,
	)

	return m
}

// WorkerHooks returns the metric callback functions expected by worker.MetricHooks.
// Centralises the prometheus observation calls so worker.go stays metrics-agnostic.
func (m *Metrics) WorkerHooks() (
	onSent func(domain.MessageType, time.Duration),
	onFailed func(domain.MessageType),
	onNoop func(domain.MessageType),
) {
	onSent = func(mt domain.MessageType, latency time.Duration) {
		m.RemindersSent.WithLabelValues(string(mt)).Inc()
		m.DeliveryLatency.WithLabelValues(string(mt)).Observe(latency.Seconds())
	}
	onFailed = func(mt domain.MessageType) {
		m.RemindersFailed.WithLabelValues(string(mt)).Inc()
	}
	onNoop = func(mt domain.MessageType) {
		m.IdempotentNoops.WithLabelValues(string(mt)).Inc()
	}
	return
}
