package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID_GeneratesNewID(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if _, err := uuid.Parse(captured); err != nil {
		t.Errorf("expected a UUID request ID, got %q", captured)
	}
	if rr.Header().Get(RequestIDHeader) != captured {
		t.Errorf("response header %q does not match context %q", rr.Header().Get(RequestIDHeader), captured)
	}
}

func TestRequestID_ClientSuppliedIDs(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		wantKeep bool
	}{
		{name: "plain", id: "existing-request-id-123", wantKeep: true},
		{name: "uuid", id: "0b3c8a9e-2f4d-4c1a-9a57-2d0e6b1f8c44", wantKeep: true},
		{name: "too long", id: strings.Repeat("a", 129), wantKeep: false},
		{name: "header injection", id: "abc\r\nX-Evil: 1", wantKeep: false},
		{name: "spaces", id: "two words", wantKeep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header[RequestIDHeader] = []string{tt.id}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if kept := captured == tt.id; kept != tt.wantKeep {
				t.Errorf("kept = %v, want %v (captured %q)", kept, tt.wantKeep, captured)
			}
			if captured == "" {
				t.Error("expected a request ID in context")
			}
		})
	}
}

func TestGetRequestID_EmptyContextReturnsEmptyString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if requestID := GetRequestID(req.Context()); requestID != "" {
		t.Errorf("expected empty string, got %q", requestID)
	}
}
