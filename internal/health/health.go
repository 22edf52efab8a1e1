// Package health provides health check implementations for external dependencies.
package health

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Check results reported per dependency.
const (
	StatusOK            = "ok"
	StatusError         = "error"
	StatusNotConfigured = "not_configured"
)

// DefaultTimeout bounds a full round of checks.
const DefaultTimeout = 5 * time.Second

// Checker is a dependency that can report its health.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// HealthCheck calls f(ctx).
func (f CheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Report is the outcome of one round of checks.
type Report struct {
	Checks  map[string]string
	Healthy bool
}

// Failed returns the names of checks that reported an error, sorted.
func (r Report) Failed() []string {
	var failed []string
	for name, status := range r.Checks {
		if status == StatusError {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return failed
}

// Run checks every dependency concurrently. A nil checker is reported as
// not_configured and does not make the report unhealthy.
func Run(ctx context.Context, logger *slog.Logger, checkers map[string]Checker) Report {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	report := Report{Checks: make(map[string]string, len(checkers)), Healthy: true}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, checker := range checkers {
		if checker == nil {
			mu.Lock()
			report.Checks[name] = StatusNotConfigured
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()
			err := checker.HealthCheck(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Checks[name] = StatusError
				report.Healthy = false
				logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
				return
			}
			report.Checks[name] = StatusOK
		}(name, checker)
	}
	wg.Wait()

	return report
}
