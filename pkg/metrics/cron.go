package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Scheduled job outcomes.
const (
	JobOutcomeSuccess = "success"
	JobOutcomeFailure = "failure"
)

// JobMetrics tracks the maintenance scheduler.
type JobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	skipped  prometheus.Counter
}

// NewJobMetrics registers scheduler metrics on reg.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduled_job_runs_total",
		Help: "Scheduled job executions by job and outcome.",
	}, []string{"job", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduled_job_duration_seconds",
		Help:    "Scheduled job duration in seconds.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 15, 60, 300},
	}, []string{"job"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduled_cycles_skipped_total",
		Help: "Cycles skipped because another replica held the scheduler lock.",
	})
	reg.MustRegister(runs, duration, skipped)
	return &JobMetrics{runs: runs, duration: duration, skipped: skipped}
}

// Observe records one job execution.
func (m *JobMetrics) Observe(job string, took time.Duration, err error) {
	if m == nil || m.runs == nil {
		return
	}
	job = normalizeLabel(job)
	outcome := JobOutcomeSuccess
	if err != nil {
		outcome = JobOutcomeFailure
	}
	m.runs.WithLabelValues(job, outcome).Inc()
	m.duration.WithLabelValues(job).Observe(took.Seconds())
}

// Skipped counts a cycle lost to lock contention.
func (m *JobMetrics) Skipped() {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
