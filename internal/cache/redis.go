package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/4ier/logodeth/internal/imaging"
)

// scanBatch is the COUNT hint used when iterating keys.
const scanBatch = 500

// NewRedisClient parses a redis:// or rediss:// URL. A non-empty password
// overrides any password in the URL.
func NewRedisClient(url, password string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	return redis.NewClient(opts), nil
}

// RedisStore is a Store backed by Redis.
type RedisStore struct {
	client  *redis.Client
	ttl     time.Duration
	maxKeys int64
}

// NewRedisStore creates a Redis-backed store. maxKeys bounds the perceptual
// index; results themselves are bounded by their TTL.
func NewRedisStore(client *redis.Client, ttl time.Duration, maxKeys int) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, maxKeys: int64(maxKeys)}
}

// Client exposes the underlying client for health checks and rate limiting.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Get fetches a cached entry and records a hit or miss.
func (s *RedisStore) Get(ctx context.Context, hash string) (*Entry, error) {
	data, err := s.client.Get(ctx, logoKey(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		s.client.Incr(ctx, missCounterKey)
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	s.client.Incr(ctx, hitsCounterKey)
	return decodeEntry(data)
}

// Set stores an entry with the configured TTL.
func (s *RedisStore) Set(ctx context.Context, hash string, e *Entry) error {
	data, err := encodeEntry(e)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, logoKey(hash), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes one entry.
func (s *RedisStore) Delete(ctx context.Context, hash string) (bool, error) {
	n, err := s.client.Del(ctx, logoKey(hash)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}
	return n > 0, nil
}

// Clear removes every cached result, the perceptual index and the counters.
func (s *RedisStore) Clear(ctx context.Context) (int64, error) {
	deleted, err := s.deletePattern(ctx, KeyPrefix+"*")
	if err != nil {
		return 0, err
	}
	if _, err := s.deletePattern(ctx, PHashPrefix+"*"); err != nil {
		return deleted, err
	}
	if err := s.client.Del(ctx, phashIndexKey, hitsCounterKey, missCounterKey).Err(); err != nil {
		return deleted, fmt.Errorf("redis del: %w", err)
	}
	return deleted, nil
}

func (s *RedisStore) deletePattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	iter := s.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		deleted += n
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan: %w", err)
	}
	return deleted, flush()
}

// Stats counts cached results and reads the hit/miss counters.
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	var keys int64
	iter := s.client.Scan(ctx, 0, KeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys++
	}
	if err := iter.Err(); err != nil {
		return Stats{}, fmt.Errorf("redis scan: %w", err)
	}

	counters, err := s.client.MGet(ctx, hitsCounterKey, missCounterKey).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("redis mget: %w", err)
	}
	hits, misses := counterValue(counters[0]), counterValue(counters[1])

	return Stats{
		Backend:    BackendRedis,
		Keys:       keys,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate(hits, misses),
		TTLSeconds: int64(s.ttl.Seconds()),
	}, nil
}

func counterValue(v any) int64 {
	str, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(str, 10, 64)
	return n
}

// HealthCheck performs a health check on Redis by sending a PING command.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Remember stores fp -> hash and adds it to the time-ordered index, trimming
// the index to the newest maxKeys fingerprints.
func (s *RedisStore) Remember(ctx context.Context, fp imaging.Fingerprint, hash string) error {
	now := time.Now()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, phashKey(fp), hash, s.ttl)
		pipe.ZAdd(ctx, phashIndexKey, redis.Z{Score: float64(now.Unix()), Member: fp.String() + ":" + hash})
		pipe.ZRemRangeByScore(ctx, phashIndexKey, "-inf", strconv.FormatInt(now.Add(-s.ttl).Unix(), 10))
		if s.maxKeys > 0 {
			pipe.ZRemRangeByRank(ctx, phashIndexKey, 0, -s.maxKeys-1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis phash index: %w", err)
	}
	return nil
}

// Similar checks the exact fingerprint key first, then scans the index
// newest-first for the closest fingerprint under the duplicate threshold.
func (s *RedisStore) Similar(ctx context.Context, fp imaging.Fingerprint) (string, error) {
	hash, err := s.client.Get(ctx, phashKey(fp)).Result()
	if err == nil {
		return hash, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("redis get: %w", err)
	}

	stop := int64(-1)
	if s.maxKeys > 0 {
		stop = s.maxKeys - 1
	}
	members, err := s.client.ZRevRange(ctx, phashIndexKey, 0, stop).Result()
	if err != nil {
		return "", fmt.Errorf("redis zrevrange: %w", err)
	}

	best, bestDist := "", imaging.DuplicateThreshold
	for _, m := range members {
		fpHex, candidate, ok := strings.Cut(m, ":")
		if !ok {
			continue
		}
		other, err := imaging.ParseFingerprint(fpHex)
		if err != nil {
			continue
		}
		if d, err := fp.Distance(other); err == nil && d < bestDist {
			best, bestDist = candidate, d
		}
	}
	if best == "" {
		return "", ErrMiss
	}
	return best, nil
}
