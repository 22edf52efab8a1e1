package middleware

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RateLimitKeyPrefix namespaces rate limit counters in Redis.
const RateLimitKeyPrefix = "logodeth:ratelimit:"

// RedisRateLimitStore implements RateLimitStore with a fixed window counter
// in Redis, so limits hold across API replicas. It fails open: a Redis error
// allows the request.
type RedisRateLimitStore struct {
	client  *redis.Client
	metrics *Metrics
	logger  *slog.Logger
}

// NewRedisRateLimitStore creates a Redis-backed store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, logger: slog.Default()}
}

// WithMetrics counts fail-open events on m.
func (s *RedisRateLimitStore) WithMetrics(m *Metrics) *RedisRateLimitStore {
	s.metrics = m
	return s
}

// WithLogger sets the logger used for fail-open warnings.
func (s *RedisRateLimitStore) WithLogger(l *slog.Logger) *RedisRateLimitStore {
	s.logger = l
	return s
}

// Allow implements RateLimitStore.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	redisKey := RateLimitKeyPrefix + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	window := ttl.Val()
	if err == nil && window < 0 {
		window = config.WindowDuration
		err = s.client.PExpire(ctx, redisKey, window).Err()
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncRateLimitStoreErrors()
		}
		s.logger.Warn("rate limit store unavailable, allowing request",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return true, config.RequestsPerWindow, 0
	}

	count := int(incr.Val())
	if count <= config.RequestsPerWindow {
		return true, config.RequestsPerWindow - count, 0
	}

	return false, 0, retryAfterSeconds(window)
}
