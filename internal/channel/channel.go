// Package channel provides the streaming channels the producer submits events to.
package channel

import (
	"context"
)

// Channel accepts one record at a time for a partition key.
// Records sharing a partition key keep their submission order.
type Channel interface {
	// Submit sends data to the channel under partitionKey.
	Submit(ctx context.Context, partitionKey string, data []byte) error

	// Close releases the channel's connections.
	Close() error
}

// Func adapts an ordinary function to the Channel interface. Close is a no-op.
type Func func(ctx context.Context, partitionKey string, data []byte) error

// Submit calls f(ctx, partitionKey, data).
func (f Func) Submit(ctx context.Context, partitionKey string, data []byte) error {
	return f(ctx, partitionKey, data)
}

// Close implements Channel.
func (f Func) Close() error {
	return nil
}
