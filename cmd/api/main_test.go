// Package main contains integration tests for the API server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/4ier/logodeth/internal/auth"
	"github.com/4ier/logodeth/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:         config.EnvTesting,
		Host:                "127.0.0.1",
		Port:                8000,
		OpenAIModel:         config.DefaultOpenAIModel,
		AnthropicModel:      config.DefaultAnthropicModel,
		MaxTokens:           config.DefaultMaxTokens,
		AITimeoutSeconds:    config.DefaultAITimeoutSeconds,
		AIRequestsPerMinute: config.DefaultAIRequestsPerMinute,
		CacheBackend:        config.CacheBackendMemory,
		CacheTTLSeconds:     config.DefaultCacheTTLSeconds,
		CacheMaxKeys:        config.DefaultCacheMaxKeys,
		APIRateLimit:        config.DefaultAPIRateLimit,
		MaxFileSize:         config.DefaultMaxFileSize,
		AllowedExtensions:   config.DefaultAllowedExtensions,
		SecretKey:           "test-secret-key-for-admin-tokens",
		DailyBudget:         config.DefaultDailyBudget,
		MonthlyBudget:       config.DefaultMonthlyBudget,
		MockMode:            true,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestServe_GracefulShutdown checks that cancelling the context stops the
// server and that start and stop are logged in order.
func TestServe_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, newServer(mux), ln, logger) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve() error = %v", err)
		}
	case <-time.After(shutdownTimeout + 5*time.Second):
		t.Fatal("server failed to stop in time")
	}

	logs := logBuf.String()
	startIdx := strings.Index(logs, "starting server")
	shutdownIdx := strings.Index(logs, "shutting down server")
	stoppedIdx := strings.Index(logs, "server stopped")
	if startIdx == -1 || shutdownIdx == -1 || stoppedIdx == -1 {
		t.Fatalf("missing lifecycle log lines:\n%s", logs)
	}
	if !(startIdx < shutdownIdx && shutdownIdx < stoppedIdx) {
		t.Errorf("log lines out of order:\n%s", logs)
	}

	if _, err := http.Get("http://" + ln.Addr().String() + "/health"); err == nil {
		t.Error("expected connection failure after shutdown")
	}
}

// TestServe_InFlightRequestCompletes checks that shutdown waits for a request
// that is already being handled.
func TestServe_InFlightRequestCompletes(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	started := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("done"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, newServer(mux), ln, quietLogger()) }()

	type result struct {
		body string
		err  error
	}
	got := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/slow")
		if err != nil {
			got <- result{err: err}
			return
		}
		defer func() { _ = resp.Body.Close() }()
		b, err := io.ReadAll(resp.Body)
		got <- result{body: string(b), err: err}
	}()

	<-started
	cancel()

	r := <-got
	if r.err != nil || r.body != "done" {
		t.Errorf("in-flight request = %q, %v", r.body, r.err)
	}
	if err := <-done; err != nil {
		t.Errorf("serve() error = %v", err)
	}
}

func TestServe_ListenerError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	_ = ln.Close()

	err = serve(context.Background(), newServer(http.NotFoundHandler()), ln, quietLogger())
	if err == nil {
		t.Error("expected error when the listener is closed")
	}
}

func TestNewApp_MockMode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, testConfig(), quietLogger())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close(context.Background())

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{path: "/", wantStatus: http.StatusOK, wantBody: `"service":"LOGODETH API"`},
		{path: "/health", wantStatus: http.StatusOK, wantBody: `"status":"healthy"`},
		{path: "/ready", wantStatus: http.StatusOK, wantBody: `"cache":"ok"`},
		{path: "/api/v1/cache/stats", wantStatus: http.StatusOK, wantBody: `"backend":"memory"`},
		{path: "/api/v1/providers", wantStatus: http.StatusOK, wantBody: `"openai"`},
		{path: "/metrics", wantStatus: http.StatusOK, wantBody: "go_goroutines"},
		{path: "/api/v1/nope", wantStatus: http.StatusNotFound, wantBody: `"not_found"`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("body missing %q: %s", tt.wantBody, rr.Body.String())
			}
		})
	}

	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	var body struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Checks["openai"] != "mock" {
		t.Errorf("openai check = %q, want mock", body.Checks["openai"])
	}
}

func TestNewApp_AdminRoutesNeedSecret(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	cfg.SecretKey = ""
	a, err := newApp(ctx, cfg, quietLogger())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close(context.Background())

	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/cache", nil))
	if rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, admin routes should not be mounted", rr.Code)
	}
}

// Loaded config already carries the localhost origins. Building the app must
// use that list as is and never write into its backing array.
func TestNewApp_DevelopmentCORSOrigins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	origins := make([]string, 0, 16)
	origins = append(origins, "https://logodeth.example")
	origins = append(origins, config.DevelopmentOrigins...)

	cfg := testConfig()
	cfg.Environment = config.EnvDevelopment
	cfg.CORSOrigins = origins
	a, err := newApp(ctx, cfg, quietLogger())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close(context.Background())

	if len(cfg.CORSOrigins) != 1+len(config.DevelopmentOrigins) {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	for i, spare := range origins[len(origins):cap(origins)] {
		if spare != "" {
			t.Errorf("spare slot %d written with %q", i, spare)
		}
	}

	tests := []struct {
		origin     string
		wantStatus int
	}{
		{origin: "http://localhost:3000", wantStatus: http.StatusNoContent},
		{origin: "https://logodeth.example", wantStatus: http.StatusNoContent},
		{origin: "https://evil.example", wantStatus: http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/recognize", nil)
		req.Header.Set("Origin", tt.origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rr := httptest.NewRecorder()
		a.handler.ServeHTTP(rr, req)
		if rr.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.origin, rr.Code, tt.wantStatus)
		}
	}
}

func TestNewCache_RedisFallsBackToMemory(t *testing.T) {
	cfg := testConfig()
	cfg.CacheBackend = config.CacheBackendRedis
	cfg.RedisURL = "redis://127.0.0.1:1"

	store, client := newCache(context.Background(), cfg, quietLogger())
	if client != nil {
		_ = client.Close()
		t.Fatal("expected no redis client when redis is unreachable")
	}
	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Backend != "memory" {
		t.Errorf("backend = %q, want memory", stats.Backend)
	}
}

func TestIssueAdminToken(t *testing.T) {
	cfg := testConfig()
	token, err := issueAdminToken(cfg, "ops", time.Minute)
	if err != nil {
		t.Fatalf("issueAdminToken() error = %v", err)
	}
	claims, err := auth.NewJWTService(cfg.SecretKey, "").RequireRole(token, auth.RoleAdmin)
	if err != nil {
		t.Fatalf("token rejected: %v", err)
	}
	if claims.Subject != "ops" {
		t.Errorf("subject = %q, want ops", claims.Subject)
	}

	cfg.SecretKeyGenerated = true
	if _, err := issueAdminToken(cfg, "ops", time.Minute); err == nil {
		t.Error("expected error for a generated secret key")
	}
}

func TestNewApp_AdminTokenClearsCache(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	a, err := newApp(ctx, cfg, quietLogger())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close(context.Background())

	token, err := issueAdminToken(cfg, "ops", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/cache", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("without token: status = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cache", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want 200; body: %s", rr.Code, rr.Body.String())
	}
}
