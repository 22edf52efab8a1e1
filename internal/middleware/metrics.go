package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricHTTPRequestsTotal     = "logodeth_http_requests_total"
	MetricHTTPRequestDuration   = "logodeth_http_request_duration_seconds"
	MetricHTTPRequestSizeBytes  = "logodeth_http_request_size_bytes"
	MetricHTTPResponseSizeBytes = "logodeth_http_response_size_bytes"
	MetricHTTPInFlight          = "logodeth_http_requests_in_flight"
	MetricRateLimitChecks       = "logodeth_rate_limit_checks_total"
	MetricRateLimitBlocked      = "logodeth_rate_limit_blocked_total"
	MetricRateLimitStoreErrors  = "logodeth_rate_limit_store_errors_total"
	MetricCORSRejected          = "logodeth_cors_rejected_total"
	MetricAdminAuthFailures     = "logodeth_admin_auth_failures_total"
)

// Admin auth failure reasons.
const (
	AuthMissingToken = "missing_token"
	AuthExpiredToken = "expired_token"
	AuthInvalidToken = "invalid_token"
	AuthForbidden    = "forbidden"
)

var requestLabels = []string{"method", "route", "status"}

// Metrics holds the collectors recorded by this package's middleware. A nil
// *Metrics records nothing.
type Metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	requestSize  *prometheus.HistogramVec
	responseSize *prometheus.HistogramVec
	inFlight     prometheus.Gauge

	rateLimitChecks  *prometheus.CounterVec
	rateLimitBlocked *prometheus.CounterVec
	rateLimitErrors  prometheus.Counter

	corsRejected *prometheus.CounterVec
	authFailures *prometheus.CounterVec
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricHTTPRequestsTotal,
			Help: "HTTP requests by method, route and status.",
		}, requestLabels),
		// Recognition requests wait on a model call, so the upper buckets
		// reach the client timeout.
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPRequestDuration,
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, requestLabels),
		requestSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPRequestSizeBytes,
			Help:    "HTTP request body size in bytes.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8), // 1 KiB to 16 MiB
		}, requestLabels),
		responseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPResponseSizeBytes,
			Help:    "HTTP response body size in bytes.",
			Buckets: prometheus.ExponentialBuckets(64, 4, 6), // 64 B to 64 KiB
		}, requestLabels),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricHTTPInFlight,
			Help: "HTTP requests currently being served.",
		}),
		rateLimitChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRateLimitChecks,
			Help: "Requests checked against the rate limit, by route.",
		}, []string{"route"}),
		rateLimitBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRateLimitBlocked,
			Help: "Requests rejected with 429, by route.",
		}, []string{"route"}),
		rateLimitErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRateLimitStoreErrors,
			Help: "Rate limit store failures. The request is allowed when this happens.",
		}),
		corsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricCORSRejected,
			Help: "Requests rejected because their Origin is not allowed, by route.",
		}, []string{"route"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricAdminAuthFailures,
			Help: "Rejected admin requests by reason.",
		}, []string{"reason"}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors lists the collectors in registration order.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requests,
		m.duration,
		m.requestSize,
		m.responseSize,
		m.inFlight,
		m.rateLimitChecks,
		m.rateLimitBlocked,
		m.rateLimitErrors,
		m.corsRejected,
		m.authFailures,
	}
}

// ObserveHTTPRequest records one finished request. route must already be
// normalized.
func (m *Metrics) ObserveHTTPRequest(method, route, status string, seconds float64, requestSize, responseSize int64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, status).Inc()
	m.duration.WithLabelValues(method, route, status).Observe(seconds)
	m.requestSize.WithLabelValues(method, route, status).Observe(float64(requestSize))
	m.responseSize.WithLabelValues(method, route, status).Observe(float64(responseSize))
}

func (m *Metrics) trackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.inFlight.Inc()
	return m.inFlight.Dec
}

// RateLimitChecked counts a rate limit decision and, when blocked, the
// rejection.
func (m *Metrics) RateLimitChecked(route string, blocked bool) {
	if m == nil {
		return
	}
	m.rateLimitChecks.WithLabelValues(route).Inc()
	if blocked {
		m.rateLimitBlocked.WithLabelValues(route).Inc()
	}
}

// IncRateLimitStoreErrors counts a fail-open event.
func (m *Metrics) IncRateLimitStoreErrors() {
	if m == nil {
		return
	}
	m.rateLimitErrors.Inc()
}

// IncCORSRejected counts a request refused by the CORS policy.
func (m *Metrics) IncCORSRejected(route string) {
	if m == nil {
		return
	}
	m.corsRejected.WithLabelValues(route).Inc()
}

// IncAdminAuthFailure counts a rejected admin request.
func (m *Metrics) IncAdminAuthFailure(reason string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(reason).Inc()
}
