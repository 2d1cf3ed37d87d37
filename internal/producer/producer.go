package producer

import (
	"context"
	"log/slog"
	"time"

	"github.com/activitysink/activitysink/internal/channel"
	"github.com/activitysink/activitysink/internal/logging"
	"github.com/activitysink/activitysink/internal/observability"
	"github.com/activitysink/activitysink/pkg/types"
)

// Config controls the submission loop.
type Config struct {
	// Interval is the pause after each submission.
	Interval time.Duration
	// MaxEvents stops the loop after this many submissions (0 = run until cancelled).
	MaxEvents int
}

// Producer submits one generated event per interval to a channel.
type Producer struct {
	gen     *Generator
	ch      channel.Channel
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a producer. logger and metrics may be nil.
func New(gen *Generator, ch channel.Channel, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Producer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Producer{
		gen:     gen,
		ch:      ch,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Run generates and submits events until ctx is cancelled, MaxEvents is
// reached, or a submission fails. Cancellation is a clean stop and returns nil;
// a submission error is returned as is and nothing further is sent.
func (p *Producer) Run(ctx context.Context) error {
	sent := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := p.SendOne(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		sent++

		if p.cfg.MaxEvents > 0 && sent >= p.cfg.MaxEvents {
			p.logger.Info("reached max events", slog.Int("sent", sent))
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.cfg.Interval):
		}
	}
}

// SendOne generates a single event and submits it under its user id.
func (p *Producer) SendOne(ctx context.Context) error {
	ev := p.gen.Generate()
	payload, err := types.EncodeEvent(ev)
	if err != nil {
		return err
	}

	if err := p.ch.Submit(ctx, ev.PartitionKey(), payload); err != nil {
		if p.metrics != nil {
			p.metrics.SubmitFailures.Inc()
		}
		p.logger.Error("submit failed",
			logging.PartitionKey(ev.PartitionKey()),
			logging.Error(err))
		return err
	}

	if p.metrics != nil {
		p.metrics.EventsSubmitted.Inc()
	}
	p.logger.Info("Sending",
		slog.String("user_id", ev.UserID),
		slog.String("event", ev.Event),
		slog.Int64("timestamp", ev.Timestamp))
	return nil
}
