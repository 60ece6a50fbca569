package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outbox delivery results.
const (
	DeliveryPublished    = "published"
	DeliveryRetry        = "retry"
	DeliveryDeadLettered = "dead_lettered"
)

// OutboxMetrics tracks how outbox rows leave the table.
type OutboxMetrics struct {
	deliveries *prometheus.CounterVec
	batchSize  prometheus.Histogram
}

// NewOutboxMetrics registers the publisher metrics on reg.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_deliveries_total",
		Help:      "Outbox rows handled by the publisher, by event type and result.",
	}, []string{"event_type", "result"})
	batchSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "outbox_batch_rows",
		Help:      "Rows claimed per publisher batch.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250},
	})
	reg.MustRegister(deliveries, batchSize)
	return &OutboxMetrics{deliveries: deliveries, batchSize: batchSize}
}

// Delivered counts one row outcome.
func (m *OutboxMetrics) Delivered(eventType, result string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(eventType), result).Inc()
}

// ObserveBatch records how many rows a batch claimed.
func (m *OutboxMetrics) ObserveBatch(rows int) {
	if m == nil || m.batchSize == nil {
		return
	}
	m.batchSize.Observe(float64(rows))
}
