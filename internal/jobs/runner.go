package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Job is a task repeated on a fixed interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Func adapts a function without a context or error to a Job body.
func Func(fn func()) func(context.Context) error {
	return func(context.Context) error {
		fn()
		return nil
	}
}

// RunPeriodic runs job every interval until ctx is cancelled. It blocks and
// should be run in a goroutine. Failures are logged and counted; the next
// tick runs regardless.
func RunPeriodic(ctx context.Context, job Job, metrics *Metrics, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("stopping background job", "job", job.Name)
			return
		case <-ticker.C:
			_ = RunOnce(ctx, job, metrics, logger)
		}
	}
}

// RunOnce runs job a single time and records the outcome.
func RunOnce(ctx context.Context, job Job, metrics *Metrics, logger *slog.Logger) error {
	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)

	if err != nil {
		metrics.observe(job.Name, StatusFailure, elapsed.Seconds())
		logger.Error("background job failed", "job", job.Name, "error", err)
		return err
	}
	metrics.observe(job.Name, StatusSuccess, elapsed.Seconds())
	logger.Debug("background job finished", "job", job.Name, "duration_ms", elapsed.Milliseconds())
	return nil
}
