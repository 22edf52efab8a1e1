// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// requestLogKey is the context key for the per-request log annotations.
type requestLogKey struct{}

// requestLog collects fields that handlers deeper in the chain want on the
// access log line.
type requestLog struct {
	mu        sync.Mutex
	subject   string
	errorCode string
}

func annotations(ctx context.Context) *requestLog {
	rl, _ := ctx.Value(requestLogKey{}).(*requestLog)
	return rl
}

// SetSubject records the authenticated subject for the access log.
// It is a no-op outside the Logging middleware.
func SetSubject(ctx context.Context, subject string) {
	if rl := annotations(ctx); rl != nil {
		rl.mu.Lock()
		rl.subject = subject
		rl.mu.Unlock()
	}
}

// GetSubject returns the subject recorded with SetSubject, or "".
func GetSubject(ctx context.Context) string {
	rl := annotations(ctx)
	if rl == nil {
		return ""
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.subject
}

// SetErrorCode records the error code of an error response.
// It is a no-op outside the Logging middleware.
func SetErrorCode(ctx context.Context, code string) {
	if rl := annotations(ctx); rl != nil {
		rl.mu.Lock()
		rl.errorCode = code
		rl.mu.Unlock()
	}
}

// GetErrorCode returns the code recorded with SetErrorCode, or "".
func GetErrorCode(ctx context.Context) string {
	rl := annotations(ctx)
	if rl == nil {
		return ""
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.errorCode
}

// WithRequestLog returns a context that accepts SetSubject and SetErrorCode.
// Logging does this for every request.
func WithRequestLog(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestLogKey{}, &requestLog{})
}

// responseWriter wraps http.ResponseWriter to capture status code and response size.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
// Only the first call sets the status code.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// newResponseWriter creates a new responseWriter with default 200 status.
func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// ParseLevel maps DEBUG, INFO, WARNING/WARN, ERROR and CRITICAL to slog levels.
// Unknown names map to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates an slog.Logger writing to stdout.
// format "json" selects the JSON handler; anything else selects text.
// An empty format means JSON in production and text elsewhere.
func NewLogger(env, level, format string) *slog.Logger {
	return newLogger(os.Stdout, env, level, format)
}

func newLogger(w io.Writer, env, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if format == "" {
		format = "text"
		if env == "production" {
			format = "json"
		}
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With(slog.String("service", "logodeth"))
}

// Logging is a middleware that logs HTTP requests with structured fields:
// method, path, status, latency (ms), request ID, client IP, response size,
// the authenticated subject and error_code for error responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := newResponseWriter(w)
			ctx := WithRequestLog(r.Context())

			next.ServeHTTP(rw, r.WithContext(ctx))

			latency := time.Since(start).Milliseconds()

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.statusCode),
				slog.Int64("latency_ms", latency),
				slog.Int("size", rw.size),
				slog.String("client_ip", ClientIP(r)),
			}

			if requestID := GetRequestID(ctx); requestID != "" {
				attrs = append(attrs, slog.String("request_id", requestID))
			}

			if subject := GetSubject(ctx); subject != "" {
				attrs = append(attrs, slog.String("subject", subject))
			}

			if rw.statusCode >= 400 {
				if errorCode := GetErrorCode(ctx); errorCode != "" {
					attrs = append(attrs, slog.String("error_code", errorCode))
				}
			}

			switch {
			case rw.statusCode >= 500:
				logger.LogAttrs(ctx, slog.LevelError, "request completed", attrs...)
			case rw.statusCode >= 400:
				logger.LogAttrs(ctx, slog.LevelWarn, "request completed", attrs...)
			default:
				logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			}
		})
	}
}
