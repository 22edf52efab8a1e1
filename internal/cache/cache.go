// Package cache stores recognition results keyed by the SHA-256 of the
// uploaded image, plus a perceptual-hash index for near-duplicate uploads.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/4ier/logodeth/internal/imaging"
)

// Key prefixes shared by every backend.
const (
	KeyPrefix      = "logodeth:logo:"
	PHashPrefix    = "logodeth:phash:"
	phashIndexKey  = "logodeth:phash-index"
	hitsCounterKey = "logodeth:stats:hits"
	missCounterKey = "logodeth:stats:misses"
)

// Backend names reported in Stats.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// ErrMiss is returned when no entry exists for a key.
var ErrMiss = errors.New("cache miss")

// Entry is a cached recognition result.
type Entry struct {
	BandName         string    `cbor:"band_name"`
	Confidence       float64   `cbor:"confidence"`
	Genre            string    `cbor:"genre,omitempty"`
	Description      string    `cbor:"description,omitempty"`
	AIModel          string    `cbor:"ai_model"`
	ProcessingTimeMS int64     `cbor:"processing_time_ms"`
	Timestamp        time.Time `cbor:"timestamp"`
	Fingerprint      string    `cbor:"fingerprint,omitempty"`
}

// Stats summarises cache contents and effectiveness.
type Stats struct {
	Backend    string  `json:"backend"`
	Keys       int64   `json:"keys"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	TTLSeconds int64   `json:"ttl_seconds"`
}

// Store is a recognition result cache.
type Store interface {
	// Get returns ErrMiss when hash is not cached.
	Get(ctx context.Context, hash string) (*Entry, error)
	Set(ctx context.Context, hash string, e *Entry) error
	Delete(ctx context.Context, hash string) (bool, error)
	// Clear removes every cached result and returns how many were removed.
	Clear(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (Stats, error)
	HealthCheck(ctx context.Context) error

	// Remember indexes fp as a fingerprint of the image cached under hash.
	Remember(ctx context.Context, fp imaging.Fingerprint, hash string) error
	// Similar returns the hash of the closest indexed image within
	// imaging.DuplicateThreshold, or ErrMiss.
	Similar(ctx context.Context, fp imaging.Fingerprint) (string, error)
}

func logoKey(hash string) string {
	return KeyPrefix + hash
}

func phashKey(fp imaging.Fingerprint) string {
	return PHashPrefix + fp.String()
}

func hitRate(hits, misses int64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}
