package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/4ier/logodeth/internal/middleware"
)

// RouterConfig wires handlers and middleware into one http.Handler.
type RouterConfig struct {
	Logger *slog.Logger

	Health      *HealthHandlers
	Recognition *RecognitionHandlers
	Cache       *CacheHandlers
	Usage       *UsageHandlers
	Archive     *ArchiveHandlers

	// Verifier guards admin routes. Admin routes are not mounted without one.
	Verifier middleware.RoleVerifier

	Metrics  *middleware.Metrics
	Gatherer prometheus.Gatherer

	// RateLimitStore and RateLimit bound POST /recognize per client IP.
	RateLimitStore middleware.RateLimitStore
	RateLimit      middleware.RateLimitConfig

	CORSOrigins []string

	// TracingService enables otelhttp spans under this service name.
	TracingService string
}

// NewRouter builds the API handler. The middleware order, outermost first, is
// RequestID, Tracing, Logging, HTTPMetrics, CORS; recognition uploads are
// additionally rate limited.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	p := middleware.APIPrefix

	mux.HandleFunc("GET /{$}", cfg.Health.Root)
	mux.HandleFunc("GET /health", cfg.Health.Health)
	mux.HandleFunc("GET /ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	recognize := http.Handler(http.HandlerFunc(cfg.Recognition.Recognize))
	if cfg.RateLimitStore != nil {
		recognize = middleware.RateLimiter(cfg.RateLimitStore, cfg.RateLimit, middleware.IPKeyFunc(), cfg.Metrics)(recognize)
	}
	mux.Handle("POST "+p+"/recognize", recognize)
	mux.HandleFunc("GET "+p+"/recognize/{hash}", cfg.Recognition.Cached)

	mux.HandleFunc("GET "+p+"/cache/stats", cfg.Cache.Stats)
	mux.HandleFunc("GET "+p+"/usage", cfg.Usage.Usage)
	mux.HandleFunc("GET "+p+"/providers", cfg.Usage.Providers)

	if cfg.Verifier != nil {
		admin := middleware.RequireAdmin(cfg.Verifier, cfg.Metrics)
		mux.Handle("DELETE "+p+"/cache", admin(http.HandlerFunc(cfg.Cache.Clear)))
		mux.Handle("DELETE "+p+"/cache/{hash}", admin(http.HandlerFunc(cfg.Cache.Delete)))
		mux.Handle("POST "+p+"/admin/cleanup", admin(http.HandlerFunc(cfg.Usage.Cleanup)))
		if cfg.Archive != nil {
			mux.Handle("GET "+p+"/admin/archive", admin(http.HandlerFunc(cfg.Archive.Link)))
		}
	}

	mux.HandleFunc("/", NotFound)

	var handler http.Handler = mux
	corsCfg := middleware.DefaultCORSConfig(cfg.CORSOrigins)
	corsCfg.Metrics = cfg.Metrics
	handler = middleware.CORS(corsCfg)(handler)
	if cfg.Metrics != nil {
		handler = middleware.HTTPMetrics(cfg.Metrics)(handler)
	}
	handler = middleware.Logging(cfg.Logger)(handler)
	if cfg.TracingService != "" {
		handler = middleware.Tracing(cfg.TracingService)(handler)
	}
	return middleware.RequestID(handler)
}
