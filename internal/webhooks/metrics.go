package webhooks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEventsTotal counts webhook events emitted by event type
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckvault_webhook_events_total",
			Help: "Total number of webhook events emitted",
		},
		[]string{"event_type"},
	)

	// WebhookDeliveriesTotal counts finished deliveries by event type and status
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckvault_webhook_deliveries_total",
			Help: "Total number of webhook deliveries by outcome",
		},
		[]string{"event_type", "status"},
	)

	WebhookDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deckvault_webhook_delivery_duration_seconds",
			Help:    "Webhook delivery latency in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"event_type"},
	)

	WebhookRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckvault_webhook_retries_total",
			Help: "Total number of webhook retry attempts",
		},
		[]string{"event_type"},
	)

	WebhookQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deckvault_webhook_queue_size",
			Help: "Current size of the webhook event queue",
		},
	)

	WebhookDroppedEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deckvault_webhook_dropped_events_total",
			Help: "Total number of webhook events dropped due to a full queue or shutdown",
		},
	)
)

// PrometheusMetrics implements MetricsRecorder using Prometheus
type PrometheusMetrics struct{}

// NewPrometheusMetrics creates a new Prometheus metrics recorder
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{}
}

func (m *PrometheusMetrics) RecordEvent(eventType string) {
	WebhookEventsTotal.WithLabelValues(eventType).Inc()
}

func (m *PrometheusMetrics) RecordDelivery(eventType, status string) {
	WebhookDeliveriesTotal.WithLabelValues(eventType, status).Inc()
}

func (m *PrometheusMetrics) RecordDeliveryDuration(eventType string, duration time.Duration) {
	WebhookDeliveryDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordRetry(eventType string) {
	WebhookRetriesTotal.WithLabelValues(eventType).Inc()
}

func (m *PrometheusMetrics) RecordDroppedEvent() {
	WebhookDroppedEventsTotal.Inc()
}

func (m *PrometheusMetrics) SetQueueSize(size int) {
	WebhookQueueSize.Set(float64(size))
}
