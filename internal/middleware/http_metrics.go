package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// APIPrefix is the versioned API root.
const APIPrefix = "/api/v1"

var staticRoutes = map[string]bool{
	"/":                          true,
	"/health":                    true,
	"/ready":                     true,
	"/metrics":                   true,
	APIPrefix + "/recognize":     true,
	APIPrefix + "/cache":         true,
	APIPrefix + "/cache/stats":   true,
	APIPrefix + "/usage":         true,
	APIPrefix + "/providers":     true,
	APIPrefix + "/admin/cleanup": true,
	APIPrefix + "/admin/archive": true,
}

// paramRoutes are route prefixes followed by a single path parameter.
var paramRoutes = []struct{ prefix, pattern string }{
	{APIPrefix + "/recognize/", APIPrefix + "/recognize/{hash}"},
	{APIPrefix + "/cache/", APIPrefix + "/cache/{hash}"},
}

// normalizePath maps request paths onto route patterns so image hashes do not
// become metric labels. Unknown paths collapse to "other".
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}
	for _, route := range paramRoutes {
		if rest, ok := strings.CutPrefix(path, route.prefix); ok && rest != "" && !strings.Contains(rest, "/") {
			return route.pattern
		}
	}
	return "other"
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	mrw.wroteHeader = true
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

// newMetricsResponseWriter creates a new metricsResponseWriter with default 200 status.
func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// Health, readiness and scrape endpoints are excluded.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/health", "/ready", "/metrics":
				next.ServeHTTP(w, r)
				return
			}

			done := metrics.trackInFlight()
			defer done()

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			requestSize := r.ContentLength
			if requestSize < 0 {
				requestSize = 0
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
