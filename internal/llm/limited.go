package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// NewLimiter allows perMinute calls per minute with a small burst.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := max(1, perMinute/10)
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

// Limited wraps a VisionClient so calls wait on a shared limiter.
type Limited struct {
	VisionClient
	limiter *rate.Limiter
}

// Limit wraps c with limiter. Passing the same limiter to several clients
// shares one outbound budget between them.
func Limit(c VisionClient, limiter *rate.Limiter) *Limited {
	return &Limited{VisionClient: c, limiter: limiter}
}

// Recognize waits for a token, then delegates.
func (l *Limited) Recognize(ctx context.Context, img Image) (*Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate limit wait: %w", l.Provider(), err)
	}
	return l.VisionClient.Recognize(ctx, img)
}

// Ping waits for a token, then delegates.
func (l *Limited) Ping(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit wait: %w", l.Provider(), err)
	}
	return l.VisionClient.Ping(ctx)
}
