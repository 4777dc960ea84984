package migrate

import (
	"context"
	"log"
	"time"
)

const retryAttempts = 3

// withRetry runs an idempotent operation with bounded exponential backoff.
// Only safe for reads and upserts-by-key; the callers guarantee that.
func withRetry(ctx context.Context, label string, op func() error) error {
	backoff := 500 * time.Millisecond
	var err error
	for attempt := 1; ; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == retryAttempts {
			return err
		}
		log.Printf("[migrate] %s attempt %d/%d failed: %v; retrying in %s", label, attempt, retryAttempts, err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
