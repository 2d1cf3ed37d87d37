package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/activitysink/activitysink/internal/errors"
)

func withFastBackoff(t *testing.T) {
	t.Helper()
	old := retryBaseDelay
	retryBaseDelay = time.Millisecond
	t.Cleanup(func() { retryBaseDelay = old })
}

// failingChannel fails the first n submissions with err.
func failingChannel(n int, err error, calls *int) Channel {
	return Func(func(ctx context.Context, partitionKey string, data []byte) error {
		*calls++
		if *calls <= n {
			return err
		}
		return nil
	})
}

func TestRetrying_RecoversFromRetryableErrors(t *testing.T) {
	withFastBackoff(t)

	calls := 0
	throttled := perrors.NewChannelError(perrors.CodeThrottled, "put record", errors.New("slow down"))
	ch := NewRetrying(failingChannel(2, throttled, &calls), 3, nil)

	require.NoError(t, ch.Submit(context.Background(), "user_1", []byte("x")))
	assert.Equal(t, 3, calls)
}

func TestRetrying_GivesUpAfterMaxRetries(t *testing.T) {
	withFastBackoff(t)

	calls := 0
	failed := perrors.NewChannelError(perrors.CodeSubmitFailed, "put record", errors.New("boom"))
	ch := NewRetrying(failingChannel(10, failed, &calls), 2, nil)

	err := ch.Submit(context.Background(), "user_1", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrying_NonRetryableReturnsImmediately(t *testing.T) {
	withFastBackoff(t)

	calls := 0
	missing := perrors.NewChannelError(perrors.CodeStreamMissing, "put record", errors.New("no stream"))
	ch := NewRetrying(failingChannel(10, missing, &calls), 5, nil)

	err := ch.Submit(context.Background(), "user_1", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrying_ZeroRetriesIsTransparent(t *testing.T) {
	calls := 0
	failed := perrors.NewChannelError(perrors.CodeSubmitFailed, "put record", errors.New("boom"))
	ch := NewRetrying(failingChannel(1, failed, &calls), 0, nil)

	assert.Error(t, ch.Submit(context.Background(), "user_1", []byte("x")))
	assert.Equal(t, 1, calls)
}

func TestRetrying_ContextCancelled(t *testing.T) {
	old := retryBaseDelay
	retryBaseDelay = time.Hour
	t.Cleanup(func() { retryBaseDelay = old })

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	failed := perrors.NewChannelError(perrors.CodeSubmitFailed, "put record", errors.New("boom"))
	ch := NewRetrying(Func(func(ctx context.Context, _ string, _ []byte) error {
		calls++
		cancel()
		return failed
	}), 3, nil)

	err := ch.Submit(ctx, "user_1", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
