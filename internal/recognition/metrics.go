package recognition

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/4ier/logodeth/internal/llm"
)

// Metric names
const (
	MetricRecognitions     = "logodeth_recognitions_total"
	MetricCacheLookups     = "logodeth_cache_lookups_total"
	MetricProviderRequests = "logodeth_provider_requests_total"
	MetricProviderDuration = "logodeth_provider_request_duration_seconds"
	MetricEstimatedSpend   = "logodeth_estimated_spend_usd_total"
)

// Cache lookup outcomes
const (
	LookupHit     = "hit"
	LookupSimilar = "similar"
	LookupMiss    = "miss"
	LookupError   = "error"
)

// Metrics contains Prometheus metrics for recognition.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	recognitions     *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	estimatedSpend   *prometheus.CounterVec
}

// NewMetrics creates recognition metrics. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		recognitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRecognitions,
				Help: "Total number of recognition requests by outcome",
			},
			[]string{"outcome"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCacheLookups,
				Help: "Total number of result cache lookups by result",
			},
			[]string{"result"},
		),
		providerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricProviderRequests,
				Help: "Total number of model provider calls by provider and status",
			},
			[]string{"provider", "status"},
		),
		providerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricProviderDuration,
				Help:    "Model provider call duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
			},
			[]string{"provider"},
		),
		estimatedSpend: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricEstimatedSpend,
				Help: "Estimated model spend in USD by model",
			},
			[]string{"model"},
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

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.recognitions,
		m.cacheLookups,
		m.providerRequests,
		m.providerDuration,
		m.estimatedSpend,
	}
}

func (m *Metrics) incRecognition(outcome string) {
	if m == nil {
		return
	}
	m.recognitions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) incCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) observeProvider(provider, status string, seconds float64) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(provider, status).Inc()
	m.providerDuration.WithLabelValues(provider).Observe(seconds)
}

// ObserveAttempt records one provider call. It satisfies llm.AttemptFunc.
func (m *Metrics) ObserveAttempt(provider llm.Provider, _ string, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.observeProvider(string(provider), status, elapsed.Seconds())
}

func (m *Metrics) addSpend(model string, usd float64) {
	if m == nil {
		return
	}
	m.estimatedSpend.WithLabelValues(model).Add(usd)
}
