package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	retryAttempts  = 3
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second
)

// Retry runs fn with bounded exponential backoff: 3 attempts total, base
// delay doubling, honoring ctx cancellation. The last error is returned
// after exhaustion.
func Retry(ctx context.Context, label string, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryBaseDelay
	bo.MaxInterval = retryMaxDelay
	bo.Multiplier = 2

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, retryAttempts-1), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if err := fn(); err != nil {
			slog.Warn("attempt failed", "op", label, "attempt", attempt, "error", err)
			return err
		}
		return nil
	}, policy)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}

	return nil
}
