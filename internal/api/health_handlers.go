package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/4ier/logodeth/internal/health"
)

// ServiceName is reported by the root endpoint.
const ServiceName = "LOGODETH API"

// HealthHandlers provides the banner, liveness and readiness endpoints.
type HealthHandlers struct {
	version string
	logger  *slog.Logger

	// cache is reported by /health but never makes it unhealthy; a broken
	// cache only costs extra model calls.
	cache health.Checker
	// providersConfigured is false when no model provider is configured
	// and mock mode is off.
	providersConfigured bool
	providerChecks      map[string]string

	// readiness dependencies; nil entries are not configured
	ready map[string]health.Checker
}

// HealthHandlersConfig configures the health check handlers.
type HealthHandlersConfig struct {
	Version string
	Logger  *slog.Logger
	Cache   health.Checker
	// Providers maps provider name to whether it is configured.
	Providers map[string]bool
	MockMode  bool
	// Ready lists the dependencies /ready checks.
	Ready map[string]health.Checker
}

// NewHealthHandlers creates a new health check handler.
func NewHealthHandlers(config HealthHandlersConfig) *HealthHandlers {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &HealthHandlers{
		version:             config.Version,
		logger:              logger,
		cache:               config.Cache,
		providersConfigured: config.MockMode,
		providerChecks:      make(map[string]string, len(config.Providers)),
		ready:               config.Ready,
	}
	for name, configured := range config.Providers {
		switch {
		case config.MockMode:
			h.providerChecks[name] = "mock"
		case configured:
			h.providerChecks[name] = health.StatusOK
			h.providersConfigured = true
		default:
			h.providerChecks[name] = health.StatusNotConfigured
		}
	}
	return h
}

// RootResponse is the service banner.
type RootResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Message string `json:"message"`
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Error     string            `json:"error,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Root handles GET /.
func (h *HealthHandlers) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFound(w, r)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, RootResponse{
		Status:  "healthy",
		Service: ServiceName,
		Version: h.version,
		Message: "> Ready to decode the undecipherable!",
	})
}

// Health handles GET /health (liveness probe). The service is healthy while
// it can recognize logos, which needs at least one provider or mock mode.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]health.Checker{"redis": h.cache}
	report := health.Run(r.Context(), h.logger, checks)

	report.Checks["api"] = health.StatusOK
	for name, status := range h.providerChecks {
		report.Checks[name] = status
	}

	response := HealthResponse{
		Status:    "healthy",
		Checks:    report.Checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if !h.providersConfigured {
		response.Status = "unhealthy"
		response.Error = "No AI providers configured"
		status = http.StatusServiceUnavailable
	}

	WriteJSON(w, r.Context(), status, response)
}

// Ready handles GET /ready (readiness probe).
// Returns 503 if any configured dependency is unavailable.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	report := health.Run(r.Context(), h.logger, h.ready)
	report.Checks["metrics"] = health.StatusOK

	response := HealthResponse{
		Status:    "healthy",
		Checks:    report.Checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if !report.Healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	WriteJSON(w, r.Context(), status, response)
}
