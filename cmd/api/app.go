package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/4ier/logodeth/internal/api"
	"github.com/4ier/logodeth/internal/archive"
	"github.com/4ier/logodeth/internal/auth"
	"github.com/4ier/logodeth/internal/cache"
	"github.com/4ier/logodeth/internal/config"
	"github.com/4ier/logodeth/internal/health"
	"github.com/4ier/logodeth/internal/imaging"
	"github.com/4ier/logodeth/internal/jobs"
	"github.com/4ier/logodeth/internal/llm"
	"github.com/4ier/logodeth/internal/middleware"
	"github.com/4ier/logodeth/internal/recognition"
	"github.com/4ier/logodeth/internal/tracing"
	"github.com/4ier/logodeth/internal/validate"
)

// maintenanceInterval is how often expired usage and rate limit state is pruned.
const maintenanceInterval = 10 * time.Minute

// mockLatency simulates a model call in mock mode.
const mockLatency = 500 * time.Millisecond

// app holds everything built from a Config.
type app struct {
	handler http.Handler
	closers []func(context.Context) error
	logger  *slog.Logger
}

func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("shutdown step failed", "error", err)
		}
	}
}

// newApp wires storage, model clients, metrics and handlers. Background
// maintenance runs until ctx is cancelled.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:    "logodeth-api",
		Enabled:        cfg.TracingEnabled,
		ServiceVersion: version,
		Environment:    cfg.Environment,
		ExporterType:   cfg.TracingExporter,
		OTLPEndpoint:   cfg.TracingEndpoint,
		SamplingRate:   cfg.TracingSampleRate,
		InsecureMode:   cfg.TracingInsecure,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, tp.Shutdown)

	store, redisClient := newCache(ctx, cfg, logger)
	if redisClient != nil {
		a.closers = append(a.closers, func(context.Context) error { return redisClient.Close() })
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}
	recMetrics := recognition.NewMetrics()
	if err := recMetrics.Register(registry); err != nil {
		return nil, fmt.Errorf("register recognition metrics: %w", err)
	}
	jobMetrics := jobs.NewMetrics()
	if err := jobMetrics.Register(registry); err != nil {
		return nil, fmt.Errorf("register job metrics: %w", err)
	}

	openaiCfg := llm.OpenAIConfig{
		APIKey:        cfg.OpenAIAPIKey,
		BaseURL:       cfg.OpenAIBaseURL,
		Model:         cfg.OpenAIModel,
		UseOpenRouter: cfg.UseOpenRouter,
		SiteURL:       cfg.OpenRouterSiteURL,
		AppName:       cfg.OpenRouterAppName,
		MaxTokens:     cfg.MaxTokens,
		Temperature:   cfg.Temperature,
		HTTPClient:    &http.Client{Timeout: cfg.AITimeout()},
	}
	anthropicCfg := llm.AnthropicConfig{
		APIKey:      cfg.AnthropicAPIKey,
		BaseURL:     cfg.AnthropicBaseURL,
		Model:       cfg.AnthropicModel,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		HTTPClient:  &http.Client{Timeout: cfg.AITimeout()},
	}

	var (
		recognizer recognition.Recognizer
		alternates api.AlternateSource
	)
	if cfg.MockMode {
		candidates, err := recognition.LoadMockCandidates(cfg.MockFixturesPath)
		if err != nil {
			return nil, err
		}
		mock := recognition.NewMockRecognizer(candidates, mockLatency)
		recognizer, alternates = mock, mock
		logger.Warn("mock mode enabled, no model will be called", "candidates", len(candidates))
	} else {
		recognizer = newFallback(cfg, openaiCfg, anthropicCfg, recMetrics, logger)
	}

	var archiveStore *archive.Store
	if cfg.ArchiveEnabled() {
		archiveStore, err = archive.NewStore(archive.Config{
			BucketName:      cfg.R2BucketName,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Endpoint:        cfg.R2Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("init archive: %w", err)
		}
	}

	backend := cache.BackendMemory
	if redisClient != nil {
		backend = cache.BackendRedis
	}
	costs := recognition.NewCostTracker(cfg.DailyBudget, cfg.MonthlyBudget, logger)
	svcCfg := recognition.Config{
		Cache:       store,
		Backend:     backend,
		Recognizer:  recognizer,
		Normalizer:  imaging.NewProcessor(imaging.DefaultConfig()),
		Costs:       costs,
		Metrics:     recMetrics,
		Logger:      logger,
		DefaultPref: []llm.Provider{llm.ProviderOpenAI, llm.ProviderAnthropic},
	}
	if archiveStore != nil {
		svcCfg.Archive = archiveStore
	}
	service := recognition.NewService(svcCfg)

	healthCfg := api.HealthHandlersConfig{
		Version: version,
		Logger:  logger,
		Cache:   store,
		Providers: map[string]bool{
			string(llm.ProviderOpenAI):    cfg.OpenAIAPIKey != "",
			string(llm.ProviderAnthropic): cfg.AnthropicAPIKey != "",
		},
		MockMode: cfg.MockMode,
		Ready:    map[string]health.Checker{"cache": store},
	}
	if redisClient != nil {
		healthCfg.Ready["redis"] = health.Redis(redisClient)
	}
	archiveHandlers := api.NewArchiveHandlers(nil, logger)
	if archiveStore != nil {
		healthCfg.Ready["archive"] = archiveStore
		archiveHandlers = api.NewArchiveHandlers(archiveStore, logger)
	}

	var rateStore middleware.RateLimitStore
	if redisClient != nil {
		rateStore = middleware.NewRedisRateLimitStore(redisClient).WithMetrics(httpMetrics).WithLogger(logger)
	} else {
		memStore := middleware.NewInMemoryRateLimitStore()
		rateStore = memStore
		go jobs.RunPeriodic(ctx, jobs.Job{
			Name:     jobs.JobRateLimitCleanup,
			Interval: maintenanceInterval,
			Run:      jobs.Func(memStore.Cleanup),
		}, jobMetrics, logger)
	}
	go jobs.RunPeriodic(ctx, jobs.Job{
		Name:     jobs.JobUsagePrune,
		Interval: maintenanceInterval,
		Run:      jobs.Func(service.PruneUsage),
	}, jobMetrics, logger)

	routerCfg := api.RouterConfig{
		Logger: logger,
		Health: api.NewHealthHandlers(healthCfg),
		Recognition: api.NewRecognitionHandlers(api.RecognitionHandlersConfig{
			Service: service,
			Constraints: validate.FileConstraints{
				AllowedExtensions: cfg.AllowedExtensions,
				AllowedTypes:      validate.AllowedImageTypes,
				MaxSizeBytes:      cfg.MaxFileSize,
			},
			Alternates: alternates,
			Logger:     logger,
		}),
		Cache:          api.NewCacheHandlers(store, logger),
		Usage:          api.NewUsageHandlers(service, llm.DescribeProviders(openaiCfg, anthropicCfg)),
		Archive:        archiveHandlers,
		Metrics:        httpMetrics,
		Gatherer:       registry,
		RateLimitStore: rateStore,
		RateLimit:      middleware.PerMinute(cfg.APIRateLimit),
		CORSOrigins:    cfg.CORSOrigins,
	}
	if cfg.SecretKey != "" {
		routerCfg.Verifier = auth.NewJWTService(cfg.SecretKey, cfg.PreviousSecretKey)
		if cfg.SecretKeyGenerated {
			logger.Warn("secret_key not set, admin tokens will not survive a restart")
		}
	}
	if tp.IsEnabled() {
		routerCfg.TracingService = "logodeth-api"
	}

	a.handler = api.NewRouter(routerCfg)
	return a, nil
}

// newCache connects to Redis when configured and reachable, and falls back to
// an in-process store otherwise.
func newCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.Store, *redis.Client) {
	memory := func() cache.Store {
		return cache.NewMemoryStore(cfg.CacheTTL(), cfg.CacheMaxKeys)
	}
	if cfg.CacheBackend != config.CacheBackendRedis {
		return memory(), nil
	}

	client, err := cache.NewRedisClient(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory cache", "error", err)
		return memory(), nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, health.DefaultTimeout)
	defer cancel()
	if err := health.Redis(client).HealthCheck(pingCtx); err != nil {
		logger.Warn("redis unavailable, using in-memory cache", "error", err)
		_ = client.Close()
		return memory(), nil
	}

	logger.Info("connected to redis")
	return cache.NewRedisStore(client, cfg.CacheTTL(), cfg.CacheMaxKeys), client
}

// newFallback builds the provider chain. Every provider shares one outbound
// rate limiter.
func newFallback(cfg *config.Config, openaiCfg llm.OpenAIConfig, anthropicCfg llm.AnthropicConfig, metrics *recognition.Metrics, logger *slog.Logger) *llm.Fallback {
	limiter := llm.NewLimiter(cfg.AIRequestsPerMinute)

	var clients []llm.VisionClient
	if openaiCfg.APIKey != "" {
		clients = append(clients, llm.Limit(llm.NewOpenAIClient(openaiCfg), limiter))
	}
	if anthropicCfg.APIKey != "" {
		clients = append(clients, llm.Limit(llm.NewAnthropicClient(anthropicCfg), limiter))
	}

	f := llm.NewFallback(logger, clients...)
	f.OnAttempt(metrics.ObserveAttempt)
	for _, p := range f.Providers() {
		logger.Info("model provider configured", "provider", p)
	}
	return f
}
