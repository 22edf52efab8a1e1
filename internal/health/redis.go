package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis checks that client answers PING. It serves both the /ready probe and
// the startup connectivity check.
func Redis(client redis.UniversalClient) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		return nil
	})
}
