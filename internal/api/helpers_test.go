package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/4ier/logodeth/internal/auth"
	"github.com/4ier/logodeth/internal/cache"
	"github.com/4ier/logodeth/internal/health"
	"github.com/4ier/logodeth/internal/llm"
	"github.com/4ier/logodeth/internal/middleware"
	"github.com/4ier/logodeth/internal/recognition"
	"github.com/4ier/logodeth/internal/validate"
)

const testSecret = "api-test-secret-at-least-32-bytes!!"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// logoPNG renders a small gradient; shade changes the pixels enough to
// produce a different hash.
func logoPNG(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 48, 48))
	for x := 0; x < 48; x++ {
		for y := 0; y < 48; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 5), G: shade, B: uint8(y * 5), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// multipartBody builds a form with a "file" part (when filename is set) and
// extra fields.
func multipartBody(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, filename, data, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recognize", body)
	req.Header.Set("Content-Type", contentType)
	req.RemoteAddr = "203.0.113.10:5000"
	return req
}

type failingRecognizer struct{ err error }

func (f failingRecognizer) Recognize(context.Context, llm.Image, []llm.Provider) (*llm.Response, error) {
	return nil, f.err
}

// fixture is a fully wired API over the in-memory cache and mock recognizer.
type fixture struct {
	store    *cache.MemoryStore
	service  *recognition.Service
	jwt      *auth.JWTService
	registry *prometheus.Registry
	handler  http.Handler
}

type fixtureOptions struct {
	recognizer recognition.Recognizer
	costs      *recognition.CostTracker
	maxSize    int64
	rateLimit  int
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	logger := quietLogger()

	candidates, err := recognition.LoadMockCandidates("")
	if err != nil {
		t.Fatal(err)
	}
	mock := recognition.NewMockRecognizer(candidates, 0)

	var recognizer recognition.Recognizer = mock
	var alternates AlternateSource = mock
	if opts.recognizer != nil {
		recognizer = opts.recognizer
		alternates = nil
	}
	if opts.maxSize == 0 {
		opts.maxSize = 10 * 1024 * 1024
	}
	if opts.rateLimit == 0 {
		opts.rateLimit = 100
	}

	store := cache.NewMemoryStore(time.Hour, 1000)
	service := recognition.NewService(recognition.Config{
		Cache:      store,
		Backend:    "memory",
		Recognizer: recognizer,
		Costs:      opts.costs,
		Logger:     logger,
	})

	httpMetrics := middleware.NewMetrics()
	registry := prometheus.NewRegistry()
	if err := httpMetrics.Register(registry); err != nil {
		t.Fatal(err)
	}

	jwtService := auth.NewJWTService(testSecret, "")
	providers := llm.ProvidersInfo{OpenAI: llm.ProviderInfo{Configured: false, Model: "gpt-4o", ProviderName: "OpenAI"}}

	handler := NewRouter(RouterConfig{
		Logger: logger,
		Health: NewHealthHandlers(HealthHandlersConfig{
			Version:   "test",
			Logger:    logger,
			Cache:     store,
			Providers: map[string]bool{"openai": false},
			MockMode:  true,
			Ready:     map[string]health.Checker{"cache": store},
		}),
		Recognition: NewRecognitionHandlers(RecognitionHandlersConfig{
			Service: service,
			Constraints: validate.FileConstraints{
				AllowedExtensions: []string{".jpg", ".jpeg", ".png", ".gif", ".webp"},
				AllowedTypes:      validate.AllowedImageTypes,
				MaxSizeBytes:      opts.maxSize,
			},
			Alternates: alternates,
			Logger:     logger,
		}),
		Cache:          NewCacheHandlers(store, logger),
		Usage:          NewUsageHandlers(service, providers),
		Archive:        NewArchiveHandlers(nil, logger),
		Verifier:       jwtService,
		Metrics:        httpMetrics,
		Gatherer:       registry,
		RateLimitStore: middleware.NewInMemoryRateLimitStore(),
		RateLimit:      middleware.PerMinute(opts.rateLimit),
		CORSOrigins:    []string{"http://localhost:3000"},
	})

	return &fixture{
		store:    store,
		service:  service,
		jwt:      jwtService,
		registry: registry,
		handler:  handler,
	}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) adminToken(t *testing.T) string {
	t.Helper()
	token, err := f.jwt.Issue("ops", auth.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response: %v, body: %s", err, rr.Body.String())
	}
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[ErrorResponse](t, rr).Error.Code
}
