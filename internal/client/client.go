// Package client is the HTTP client used by the logodeth CLI to talk to the
// recognition API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/4ier/logodeth/internal/ranking"
)

const (
	// DefaultTimeout bounds a whole recognition round trip.
	DefaultTimeout = 60 * time.Second

	// APIPath is the versioned API prefix.
	APIPath = "/api/v1"

	// LocalBaseURL is used when the API runs on this machine.
	LocalBaseURL = "http://localhost:8000" + APIPath
)

// CacheMetadata is present on results served from the cache.
type CacheMetadata struct {
	CachedAt  time.Time `json:"cached_at"`
	MatchedBy string    `json:"matched_by"`
}

// Result is a recognition answer with its ranked candidate list.
type Result struct {
	BandName         string                 `json:"band_name"`
	Confidence       float64                `json:"confidence"`
	Genre            string                 `json:"genre,omitempty"`
	Description      string                 `json:"description,omitempty"`
	AIModel          string                 `json:"ai_model"`
	Cached           bool                   `json:"cached"`
	ProcessingTimeMS int64                  `json:"processing_time_ms"`
	ImageHash        string                 `json:"image_hash"`
	Timestamp        time.Time              `json:"timestamp"`
	CacheMetadata    *CacheMetadata         `json:"_cache_metadata,omitempty"`
	Ranked           []ranking.RankedResult `json:"ranked,omitempty"`
}

// Health is the body of GET /health.
type Health struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
}

// Healthy reports whether the API accepts recognition requests.
func (h Health) Healthy() bool { return h.Status == "healthy" }

// Stats is the body of GET /api/v1/cache/stats.
type Stats struct {
	Backend    string  `json:"backend"`
	Keys       int64   `json:"keys"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	TTLSeconds int64   `json:"ttl_seconds"`
}

// Options tune a recognition request.
type Options struct {
	ProviderPreference []string
	ForceRefresh       bool
}

// Client calls the recognition API.
type Client struct {
	baseURL    string
	origin     string
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithOrigin sends an Origin header, as a browser would.
func WithOrigin(origin string) Option {
	return func(c *Client) { c.origin = origin }
}

// New creates a Client for baseURL, which must include the API prefix.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API base the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// ResolveBaseURL maps a server origin to an API base URL. Local hosts
// always use LocalBaseURL; any other origin gets APIPath appended.
func ResolveBaseURL(origin string) string {
	if origin == "" {
		return LocalBaseURL
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return LocalBaseURL
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1":
		return LocalBaseURL
	}
	return u.Scheme + "://" + u.Host + APIPath
}

// RecognizeFile uploads the image at path.
func (c *Client) RecognizeFile(ctx context.Context, path string, opts Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()
	return c.Recognize(ctx, filepath.Base(path), f, opts)
}

// Recognize uploads an image read from r under filename.
func (c *Client) Recognize(ctx context.Context, filename string, r io.Reader, opts Options) (*Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(opts.ProviderPreference) > 0 {
		pref, err := json.Marshal(opts.ProviderPreference)
		if err != nil {
			return nil, fmt.Errorf("failed to encode provider preference: %w", err)
		}
		if err := mw.WriteField("provider_preference", string(pref)); err != nil {
			return nil, err
		}
	}
	if opts.ForceRefresh {
		if err := mw.WriteField("force_refresh", "true"); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recognize", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result Result
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Cached fetches a previously computed result by image hash.
func (c *Client) Cached(ctx context.Context, hash string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/recognize/"+url.PathEscape(hash), nil)
	if err != nil {
		return nil, err
	}
	var result Result
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CacheStats fetches cache statistics.
func (c *Client) CacheStats(ctx context.Context) (*Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cache/stats", nil)
	if err != nil {
		return nil, err
	}
	var stats Stats
	if err := c.do(req, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Health queries GET /health on the server root. It never fails: transport
// errors are reported as status "unreachable" and error responses without a
// health body as status "unhealthy".
func (c *Client) Health(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(c.baseURL, APIPath)+"/health", nil)
	if err != nil {
		return Health{Status: "unreachable", Error: err.Error()}
	}
	c.prepare(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Health{Status: "unreachable", Error: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	var h Health
	decodeErr := json.NewDecoder(resp.Body).Decode(&h)
	if resp.StatusCode != http.StatusOK {
		if decodeErr != nil || h.Status == "" {
			return Health{Status: "unhealthy", Error: fmt.Sprintf("HTTP %d", resp.StatusCode)}
		}
		if h.Status == "healthy" {
			h.Status = "unhealthy"
		}
		return h
	}
	if decodeErr != nil {
		return Health{Status: "unhealthy", Error: "invalid health response"}
	}
	return h
}

// CheckHealth returns an *UnhealthyError unless the API reports healthy.
func (c *Client) CheckHealth(ctx context.Context) error {
	h := c.Health(ctx)
	if h.Healthy() {
		return nil
	}
	return &UnhealthyError{Status: h.Status, Reason: h.Error}
}

func (c *Client) prepare(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}
}

func (c *Client) do(req *http.Request, out any) error {
	c.prepare(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(req.Context(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
