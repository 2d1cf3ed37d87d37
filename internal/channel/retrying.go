package channel

import (
	"context"
	"log/slog"
	"math"
	"time"

	perrors "github.com/activitysink/activitysink/internal/errors"
	"github.com/activitysink/activitysink/internal/logging"
)

// retryBaseDelay is the first backoff step; it doubles on every attempt.
var retryBaseDelay = 100 * time.Millisecond

// Retrying wraps a Channel and retries retryable submit failures with
// exponential backoff. Non-retryable errors are returned immediately.
type Retrying struct {
	next       Channel
	maxRetries int
	logger     *slog.Logger
}

// NewRetrying wraps next. maxRetries of 0 makes the wrapper transparent.
func NewRetrying(next Channel, maxRetries int, logger *slog.Logger) *Retrying {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Retrying{next: next, maxRetries: maxRetries, logger: logger}
}

// Submit implements Channel.
func (r *Retrying) Submit(ctx context.Context, partitionKey string, data []byte) error {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = r.next.Submit(ctx, partitionKey, data)
		if lastErr == nil || !perrors.IsRetryable(lastErr) {
			return lastErr
		}

		if attempt < r.maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * retryBaseDelay
			r.logger.Warn("submit failed, retrying",
				logging.PartitionKey(partitionKey),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
				logging.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}

// Close closes the wrapped channel.
func (r *Retrying) Close() error {
	return r.next.Close()
}
