package storage

import (
	"context"
	"errors"
	"math"
	"time"
)

// retryBaseDelay is the first backoff step; it doubles on every attempt.
var retryBaseDelay = 100 * time.Millisecond

// retryWithBackoff executes the operation, retrying up to maxRetries times
// with exponential backoff. maxRetries of 0 runs the operation exactly once.
func retryWithBackoff(ctx context.Context, maxRetries int, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		// Don't retry on not found errors
		if errors.Is(lastErr, ErrObjectNotFound) {
			return lastErr
		}

		if attempt < maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * retryBaseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
