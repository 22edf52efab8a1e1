package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/4ier/logodeth/internal/tracing"
)

// AttemptFunc observes every provider call made by a Fallback.
type AttemptFunc func(provider Provider, model string, elapsed time.Duration, err error)

// Fallback tries providers in preference order until one answers.
type Fallback struct {
	clients   map[Provider]VisionClient
	order     []Provider
	logger    *slog.Logger
	onAttempt AttemptFunc
}

// NewFallback builds a chain. Registration order is the default preference;
// nil clients are skipped so callers can pass optional providers directly.
func NewFallback(logger *slog.Logger, clients ...VisionClient) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fallback{clients: make(map[Provider]VisionClient), logger: logger}
	for _, c := range clients {
		if c == nil {
			continue
		}
		if _, dup := f.clients[c.Provider()]; !dup {
			f.order = append(f.order, c.Provider())
		}
		f.clients[c.Provider()] = c
	}
	return f
}

// OnAttempt registers an observer for provider calls.
func (f *Fallback) OnAttempt(fn AttemptFunc) {
	f.onAttempt = fn
}

// Providers returns the configured providers in default order.
func (f *Fallback) Providers() []Provider {
	return append([]Provider(nil), f.order...)
}

// Client returns the client for a provider, if configured.
func (f *Fallback) Client(p Provider) (VisionClient, bool) {
	c, ok := f.clients[p]
	return c, ok
}

// Recognize asks each preferred provider in turn. Providers that are not
// configured are skipped. When every attempt fails the last error is returned;
// when nothing was attempted the result is ErrNoProviders.
func (f *Fallback) Recognize(ctx context.Context, img Image, preference []Provider) (*Response, error) {
	if len(preference) == 0 {
		preference = f.order
	}

	var lastErr error
	for _, p := range preference {
		client, ok := f.clients[p]
		if !ok {
			f.logger.Warn("provider not available, skipping", slog.String("provider", string(p)))
			continue
		}

		f.logger.Info("attempting recognition",
			slog.String("provider", string(p)),
			slog.String("model", client.Model()))

		start := time.Now()
		spanCtx, endSpan := tracing.StartModelSpan(ctx, string(p), client.Model())
		resp, err := client.Recognize(spanCtx, img)
		endSpan(err)
		if f.onAttempt != nil {
			f.onAttempt(p, client.Model(), time.Since(start), err)
		}
		if err == nil {
			return resp, nil
		}

		f.logger.Error("provider failed",
			slog.String("provider", string(p)),
			slog.String("error", err.Error()))
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNoProviders
}

// Health pings every known provider. Unconfigured providers report false.
func (f *Fallback) Health(ctx context.Context) map[Provider]bool {
	health := map[Provider]bool{
		ProviderOpenAI:    false,
		ProviderAnthropic: false,
	}
	for p, c := range f.clients {
		if err := c.Ping(ctx); err != nil {
			f.logger.Warn("provider health check failed",
				slog.String("provider", string(p)),
				slog.String("error", err.Error()))
			continue
		}
		health[p] = true
	}
	return health
}
