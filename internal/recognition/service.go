// Package recognition identifies band logos: it deduplicates uploads against
// the result cache, asks the model fallback chain on a miss, and keeps track
// of what that costs.
package recognition

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/4ier/logodeth/internal/cache"
	"github.com/4ier/logodeth/internal/imaging"
	"github.com/4ier/logodeth/internal/llm"
	"github.com/4ier/logodeth/internal/tracing"
)

// Service errors
var (
	ErrNotFound     = errors.New("no cached result found")
	ErrInvalidImage = errors.New("invalid image")
)

// How a result was obtained.
const (
	MatchedExact   = "exact"
	MatchedSimilar = "similar"
)

// Upload is one recognition request.
type Upload struct {
	Data               []byte
	Filename           string
	MIMEType           string
	ProviderPreference []llm.Provider
	ForceRefresh       bool
	// Identifier selects the budget bucket; empty means DefaultIdentifier.
	Identifier string
}

// CacheMetadata describes where a cached result came from.
type CacheMetadata struct {
	CachedAt  time.Time `json:"cached_at"`
	MatchedBy string    `json:"matched_by"`
}

// Result is a recognition answer as returned to clients.
type Result struct {
	BandName         string         `json:"band_name"`
	Confidence       float64        `json:"confidence"`
	Genre            string         `json:"genre,omitempty"`
	Description      string         `json:"description,omitempty"`
	AIModel          string         `json:"ai_model"`
	Cached           bool           `json:"cached"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
	ImageHash        string         `json:"image_hash"`
	Timestamp        time.Time      `json:"timestamp"`
	CacheMetadata    *CacheMetadata `json:"_cache_metadata,omitempty"`
}

// Recognizer runs the model fallback chain.
type Recognizer interface {
	Recognize(ctx context.Context, img llm.Image, preference []llm.Provider) (*llm.Response, error)
}

// Archiver keeps a copy of uploads that needed a model call.
type Archiver interface {
	Put(ctx context.Context, hash, contentType string, data []byte) (string, error)
}

// Normalizer prepares an image before it is sent to a model.
type Normalizer interface {
	Normalize(input []byte) (*imaging.Processed, error)
}

// Config wires a Service. Cache and Recognizer are required.
type Config struct {
	Cache       cache.Store
	Backend     string
	Recognizer  Recognizer
	Normalizer  Normalizer
	Archive     Archiver
	Costs       *CostTracker
	Metrics     *Metrics
	Logger      *slog.Logger
	DefaultPref []llm.Provider
}

// Service recognizes logos.
type Service struct {
	cache       cache.Store
	backend     string
	recognizer  Recognizer
	normalizer  Normalizer
	archive     Archiver
	costs       *CostTracker
	metrics     *Metrics
	logger      *slog.Logger
	defaultPref []llm.Provider
	now         func() time.Time
}

// NewService creates a recognition service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cache:       cfg.Cache,
		backend:     cfg.Backend,
		recognizer:  cfg.Recognizer,
		normalizer:  cfg.Normalizer,
		archive:     cfg.Archive,
		costs:       cfg.Costs,
		metrics:     cfg.Metrics,
		logger:      logger,
		defaultPref: cfg.DefaultPref,
		now:         time.Now,
	}
}

// ImageHash returns the hex SHA-256 of data, the exact cache key.
func ImageHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Recognize identifies the logo in u. Cache failures are logged and treated
// as misses; they never fail the request.
func (s *Service) Recognize(ctx context.Context, u Upload) (result *Result, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "recognize_logo")
	defer func() { endSpan(err) }()

	start := s.now()
	if len(u.Data) == 0 {
		s.metrics.incRecognition("invalid")
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidImage)
	}

	hash := ImageHash(u.Data)
	tracing.SetAttributes(ctx, attribute.String("image_hash", hash))

	fp, fpErr := imaging.PerceptualHash(u.Data)
	if fpErr != nil {
		s.logger.Debug("perceptual hash unavailable",
			slog.String("image_hash", hash),
			slog.String("error", fpErr.Error()))
	}

	if !u.ForceRefresh {
		if hit := s.lookup(ctx, hash, fp, fpErr == nil); hit != nil {
			s.metrics.incRecognition("cached")
			return hit, nil
		}
	}

	if s.costs != nil {
		if err := s.costs.CheckBudget(u.Identifier); err != nil {
			s.metrics.incRecognition("budget_exceeded")
			s.logger.Warn("recognition budget exceeded",
				slog.String("identifier", u.Identifier),
				slog.String("error", err.Error()))
			return nil, err
		}
	}

	img := s.prepare(hash, u)

	pref := u.ProviderPreference
	if len(pref) == 0 {
		pref = s.defaultPref
	}
	resp, err := s.recognizer.Recognize(ctx, img, pref)
	if err != nil {
		s.metrics.incRecognition("failed")
		return nil, err
	}

	now := s.now()
	result = &Result{
		BandName:         resp.BandName,
		Confidence:       clampConfidence(resp.Confidence),
		Genre:            resp.Genre,
		Description:      resp.Description,
		AIModel:          resp.Model,
		Cached:           false,
		ProcessingTimeMS: now.Sub(start).Milliseconds(),
		ImageHash:        hash,
		Timestamp:        now.UTC(),
	}

	if s.costs != nil {
		cost := s.costs.Record(resp.Model, u.Identifier)
		s.metrics.addSpend(resp.Model, cost)
	}

	entry := &cache.Entry{
		BandName:         result.BandName,
		Confidence:       result.Confidence,
		Genre:            result.Genre,
		Description:      result.Description,
		AIModel:          result.AIModel,
		ProcessingTimeMS: result.ProcessingTimeMS,
		Timestamp:        result.Timestamp,
	}
	if fpErr == nil {
		entry.Fingerprint = fp.String()
	}
	s.store(ctx, hash, fp, fpErr == nil, entry)
	s.archiveUpload(ctx, hash, u)

	s.metrics.incRecognition("recognized")
	s.logger.Info("logo recognized",
		slog.String("image_hash", hash),
		slog.String("band_name", result.BandName),
		slog.Float64("confidence", result.Confidence),
		slog.String("provider", string(resp.Provider)),
		slog.String("model", resp.Model),
		slog.Int64("processing_time_ms", result.ProcessingTimeMS))
	return result, nil
}

// Cached returns the cached result for hash, or ErrNotFound.
func (s *Service) Cached(ctx context.Context, hash string) (*Result, error) {
	entry, err := s.get(ctx, hash)
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromEntry(hash, entry, MatchedExact), nil
}

// Usage reports spend for identifier.
func (s *Service) Usage(identifier string) UsageStats {
	if s.costs == nil {
		return UsageStats{}
	}
	return s.costs.Usage(identifier)
}

// PruneUsage drops spend records outside the current day and month.
func (s *Service) PruneUsage() {
	if s.costs != nil {
		s.costs.Prune()
	}
}

func (s *Service) lookup(ctx context.Context, hash string, fp imaging.Fingerprint, haveFP bool) *Result {
	entry, err := s.get(ctx, hash)
	switch {
	case err == nil:
		s.metrics.incCacheLookup(LookupHit)
		s.logger.Info("cache hit", slog.String("image_hash", hash))
		return fromEntry(hash, entry, MatchedExact)
	case !errors.Is(err, cache.ErrMiss):
		s.metrics.incCacheLookup(LookupError)
		s.logger.Warn("cache lookup failed",
			slog.String("image_hash", hash),
			slog.String("error", err.Error()))
		return nil
	}

	if haveFP {
		if r := s.similar(ctx, hash, fp); r != nil {
			s.metrics.incCacheLookup(LookupSimilar)
			return r
		}
	}
	s.metrics.incCacheLookup(LookupMiss)
	return nil
}

func (s *Service) similar(ctx context.Context, hash string, fp imaging.Fingerprint) *Result {
	ctx, endSpan := tracing.StartCacheSpan(ctx, s.backend, tracing.CacheOperationSimilar)
	match, err := s.cache.Similar(ctx, fp)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			err = nil
		}
		endSpan(err)
		if err != nil {
			s.logger.Warn("similar image lookup failed",
				slog.String("image_hash", hash),
				slog.String("error", err.Error()))
		}
		return nil
	}
	endSpan(nil)

	entry, err := s.get(ctx, match)
	if err != nil {
		return nil
	}
	s.logger.Info("near-duplicate cache hit",
		slog.String("image_hash", hash),
		slog.String("matched_hash", match))
	// Keep the answer under the new hash too so it can be fetched by the
	// hash the response reports. The fingerprint index already covers it.
	s.store(ctx, hash, fp, false, entry)
	return fromEntry(hash, entry, MatchedSimilar)
}

func (s *Service) get(ctx context.Context, hash string) (entry *cache.Entry, err error) {
	ctx, endSpan := tracing.StartCacheSpan(ctx, s.backend, tracing.CacheOperationGet)
	defer func() {
		if errors.Is(err, cache.ErrMiss) {
			endSpan(nil)
			return
		}
		endSpan(err)
	}()
	return s.cache.Get(ctx, hash)
}

func (s *Service) store(ctx context.Context, hash string, fp imaging.Fingerprint, haveFP bool, entry *cache.Entry) {
	ctx, endSpan := tracing.StartCacheSpan(ctx, s.backend, tracing.CacheOperationSet)
	err := s.cache.Set(ctx, hash, entry)
	if err == nil && haveFP {
		err = s.cache.Remember(ctx, fp, hash)
	}
	endSpan(err)
	if err != nil {
		s.logger.Warn("failed to cache result",
			slog.String("image_hash", hash),
			slog.String("error", err.Error()))
	}
}

func (s *Service) prepare(hash string, u Upload) llm.Image {
	img := llm.Image{Data: u.Data, MIMEType: u.MIMEType}
	if s.normalizer == nil {
		return img
	}
	processed, err := s.normalizer.Normalize(u.Data)
	if err != nil {
		s.logger.Warn("image normalization failed, sending original",
			slog.String("image_hash", hash),
			slog.String("error", err.Error()))
		return img
	}
	return llm.Image{Data: processed.Data, MIMEType: processed.MIMEType}
}

func (s *Service) archiveUpload(ctx context.Context, hash string, u Upload) {
	if s.archive == nil {
		return
	}
	key, err := s.archive.Put(ctx, hash, u.MIMEType, u.Data)
	if err != nil {
		s.logger.Warn("failed to archive upload",
			slog.String("image_hash", hash),
			slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("upload archived", slog.String("key", key))
}

func fromEntry(hash string, e *cache.Entry, matchedBy string) *Result {
	return &Result{
		BandName:         e.BandName,
		Confidence:       e.Confidence,
		Genre:            e.Genre,
		Description:      e.Description,
		AIModel:          e.AIModel,
		Cached:           true,
		ProcessingTimeMS: e.ProcessingTimeMS,
		ImageHash:        hash,
		Timestamp:        e.Timestamp,
		CacheMetadata: &CacheMetadata{
			CachedAt:  e.Timestamp,
			MatchedBy: matchedBy,
		},
	}
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}
