package localstream

import (
	"context"
	"log/slog"
	"time"

	"github.com/activitysink/activitysink/internal/logging"
	"github.com/activitysink/activitysink/pkg/types"
)

// BatchHandler processes one delivered batch. *consumer.Handler's Handle
// method has this signature.
type BatchHandler func(ctx context.Context, ev types.StreamEvent) (types.BatchResponse, error)

// TriggerConfig controls polling.
type TriggerConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

// Trigger delivers stream records to a handler the way the managed event
// source mapping does: per shard, in order, at least once.
type Trigger struct {
	stream *Stream
	cfg    TriggerConfig
	logger *slog.Logger
}

// NewTrigger creates a trigger over stream.
func NewTrigger(stream *Stream, cfg TriggerConfig, logger *slog.Logger) *Trigger {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Trigger{stream: stream, cfg: cfg, logger: logger}
}

// Run polls every shard each interval until ctx is cancelled.
func (t *Trigger) Run(ctx context.Context, handler BatchHandler) error {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := t.DeliverOnce(ctx, handler); err != nil && ctx.Err() == nil {
			t.logger.Error("delivery pass failed", logging.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// DeliverOnce hands at most one batch per shard to handler and returns the
// number of records acknowledged.
//
// A handler error leaves the shard checkpoint untouched, so the whole batch
// is delivered again on the next pass. A response listing BatchItemFailures
// acknowledges only the records before the earliest failed one.
func (t *Trigger) DeliverOnce(ctx context.Context, handler BatchHandler) (int, error) {
	acked := 0
	for shard := 0; shard < t.stream.Shards(); shard++ {
		ev, err := t.stream.Poll(ctx, shard, t.cfg.BatchSize)
		if err != nil {
			return acked, err
		}
		if len(ev.Records) == 0 {
			continue
		}

		resp, err := handler(ctx, ev)
		if err != nil {
			t.logger.Warn("batch failed, will redeliver",
				slog.Int("shard", shard),
				logging.Records(len(ev.Records)),
				logging.Error(err))
			continue
		}

		n := ackable(ev.Records, resp.BatchItemFailures)
		if n == 0 {
			continue
		}
		if err := t.stream.Ack(ctx, shard, ev.Records[n-1].Kinesis.SequenceNumber); err != nil {
			return acked, err
		}
		acked += n
		if n < len(ev.Records) {
			t.logger.Warn("partial batch failure, will redeliver",
				slog.Int("shard", shard),
				logging.SequenceNumber(ev.Records[n].Kinesis.SequenceNumber))
		}
	}
	return acked, nil
}

// ackable returns how many leading records can be acknowledged given the
// reported failures.
func ackable(records []types.StreamRecord, failures []types.BatchItemFailure) int {
	if len(failures) == 0 {
		return len(records)
	}
	failed := make(map[string]bool, len(failures))
	for _, f := range failures {
		failed[f.ItemIdentifier] = true
	}
	for i, rec := range records {
		if failed[rec.Kinesis.SequenceNumber] {
			return i
		}
	}
	return len(records)
}
