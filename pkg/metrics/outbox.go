package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outbox dispatch outcomes.
const (
	OutboxOutcomePublished = "published"
	OutboxOutcomeRetry     = "retry"
	OutboxOutcomeDLQ       = "dlq"
)

// OutboxMetrics tracks the replay worker.
type OutboxMetrics struct {
	dispatched *prometheus.CounterVec
	backlog    prometheus.Gauge
	pending    prometheus.Gauge
}

// NewOutboxMetrics registers outbox metrics on reg.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_dispatch_total",
		Help: "Outbox events dispatched by event type and outcome.",
	}, []string{"event_type", "outcome"})
	backlog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_batch_size",
		Help: "Number of unpublished events claimed in the last poll.",
	})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_pending_events",
		Help: "Unpublished outbox events at the last backlog check.",
	})
	reg.MustRegister(dispatched, backlog, pending)
	return &OutboxMetrics{dispatched: dispatched, backlog: backlog, pending: pending}
}

// Dispatched counts one dispatch attempt.
func (m *OutboxMetrics) Dispatched(eventType, outcome string) {
	if m == nil || m.dispatched == nil {
		return
	}
	m.dispatched.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// Batch records the size of the last claimed batch.
func (m *OutboxMetrics) Batch(size int) {
	if m == nil || m.backlog == nil {
		return
	}
	m.backlog.Set(float64(size))
}

// Pending records the unpublished backlog.
func (m *OutboxMetrics) Pending(count int64) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Set(float64(count))
}
