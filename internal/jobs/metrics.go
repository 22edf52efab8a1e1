// Package jobs runs periodic maintenance tasks and records their outcomes.
package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricJobRuns     = "logodeth_background_jobs_total"
	MetricJobDuration = "logodeth_background_job_duration_seconds"
)

// Job names used as the job label.
const (
	JobUsagePrune       = "usage_prune"
	JobRateLimitCleanup = "ratelimit_cleanup"
)

// Status constants for job completion.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics contains Prometheus metrics for background jobs.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates job metrics. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricJobRuns,
				Help: "Background job runs by job and status",
			},
			[]string{"job", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricJobDuration,
				Help:    "Background job duration in seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"job"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.runs, m.duration}
}

func (m *Metrics) observe(job, status string, seconds float64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job, status).Inc()
	m.duration.WithLabelValues(job).Observe(seconds)
}
