// Package consumer implements the function handler that stores delivered
// stream records as objects.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	perrors "github.com/activitysink/activitysink/internal/errors"
	"github.com/activitysink/activitysink/internal/logging"
	"github.com/activitysink/activitysink/internal/observability"
	"github.com/activitysink/activitysink/internal/storage"
	"github.com/activitysink/activitysink/pkg/types"
)

// KeyStrategy decides how object keys are derived from records.
type KeyStrategy string

const (
	// KeyRandom draws a fresh UUIDv4 per attempt. A redelivered record
	// produces a second object.
	KeyRandom KeyStrategy = "random"
	// KeyIdempotent derives a UUIDv5 from the record's idempotency key, so
	// redelivery overwrites the same object.
	KeyIdempotent KeyStrategy = "idempotent"
)

// FailureMode decides what a failed record does to the rest of the batch.
type FailureMode string

const (
	// FailFast aborts the invocation on the first failure.
	FailFast FailureMode = "fail-fast"
	// Isolate attempts every record and reports failures individually.
	Isolate FailureMode = "isolate"
)

// keyNamespace scopes idempotent object keys.
var keyNamespace = uuid.MustParse("6f1d5c1e-3b0a-5d8e-9a57-2f4c8b7e1a90")

// Options configures a Handler. The zero value behaves like DefaultOptions.
type Options struct {
	KeyStrategy KeyStrategy
	FailureMode FailureMode
	Workers     int
	Prefix      string
}

// DefaultOptions returns random keys, fail-fast, one worker and no prefix.
func DefaultOptions() Options {
	return Options{
		KeyStrategy: KeyRandom,
		FailureMode: FailFast,
		Workers:     1,
	}
}

// Handler writes every record of a delivered batch to an object store.
type Handler struct {
	store   storage.ObjectWriter
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewHandler creates a handler writing to store. logger and metrics may be nil.
func NewHandler(store storage.ObjectWriter, opts Options, logger *slog.Logger, metrics *observability.Metrics) (*Handler, error) {
	if store == nil {
		return nil, perrors.NewConfigError("consumer: object store is required")
	}
	if opts.KeyStrategy == "" {
		opts.KeyStrategy = KeyRandom
	}
	if opts.FailureMode == "" {
		opts.FailureMode = FailFast
	}
	if opts.Workers == 0 {
		opts.Workers = 1
	}

	switch opts.KeyStrategy {
	case KeyRandom, KeyIdempotent:
	default:
		return nil, perrors.NewConfigError(fmt.Sprintf("consumer: unknown key strategy %q", opts.KeyStrategy))
	}
	switch opts.FailureMode {
	case FailFast, Isolate:
	default:
		return nil, perrors.NewConfigError(fmt.Sprintf("consumer: unknown failure mode %q", opts.FailureMode))
	}
	if opts.Workers < 1 {
		return nil, perrors.NewConfigError(fmt.Sprintf("consumer: workers must be at least 1, got %d", opts.Workers))
	}

	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{
		store:   store,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// ObjectKey returns the key a record is stored under: <prefix><uuid>.json.
func (h *Handler) ObjectKey(rec types.StreamRecord) string {
	var id uuid.UUID
	if h.opts.KeyStrategy == KeyIdempotent {
		id = uuid.NewSHA1(keyNamespace, []byte(rec.IdempotencyKey()))
	} else {
		id = uuid.New()
	}
	return h.opts.Prefix + id.String() + ".json"
}

// Handle stores each record of ev and returns the fixed success response.
//
// In fail-fast mode the first failing record ends the invocation with an
// error; with one worker no later record is written. In isolate mode every
// record is attempted and the failed ones are listed by sequence number in
// BatchItemFailures while the status stays 200.
func (h *Handler) Handle(ctx context.Context, ev types.StreamEvent) (types.BatchResponse, error) {
	logger := h.logger
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logger = logger.With(logging.RequestID(lc.AwsRequestID))
	}
	logger.Debug("batch received", logging.Records(len(ev.Records)))

	var (
		failures []types.BatchItemFailure
		err      error
	)
	if h.opts.Workers > 1 && len(ev.Records) > 1 {
		failures, err = h.handleConcurrent(ctx, logger, ev.Records)
	} else {
		failures, err = h.handleSequential(ctx, logger, ev.Records)
	}
	if err != nil {
		return types.BatchResponse{}, err
	}

	if h.metrics != nil {
		h.metrics.BatchesProcessed.Inc()
	}
	resp := types.NewSuccessResponse()
	resp.BatchItemFailures = failures
	return resp, nil
}

func (h *Handler) handleSequential(ctx context.Context, logger *slog.Logger, records []types.StreamRecord) ([]types.BatchItemFailure, error) {
	var failures []types.BatchItemFailure
	for _, rec := range records {
		if err := h.processRecord(ctx, logger, rec); err != nil {
			if h.opts.FailureMode == FailFast {
				return nil, err
			}
			failures = append(failures, types.BatchItemFailure{ItemIdentifier: rec.Kinesis.SequenceNumber})
		}
	}
	return failures, nil
}

func (h *Handler) handleConcurrent(ctx context.Context, logger *slog.Logger, records []types.StreamRecord) ([]types.BatchItemFailure, error) {
	failed := make([]bool, len(records))

	var g *errgroup.Group
	gctx := ctx
	if h.opts.FailureMode == FailFast {
		g, gctx = errgroup.WithContext(ctx)
	} else {
		g = new(errgroup.Group)
	}
	g.SetLimit(h.opts.Workers)

	for i, rec := range records {
		g.Go(func() error {
			if err := h.processRecord(gctx, logger, rec); err != nil {
				if h.opts.FailureMode == FailFast {
					return err
				}
				failed[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var failures []types.BatchItemFailure
	for i, f := range failed {
		if f {
			failures = append(failures, types.BatchItemFailure{ItemIdentifier: records[i].Kinesis.SequenceNumber})
		}
	}
	return failures, nil
}

// processRecord decodes one record and writes its payload unchanged.
func (h *Handler) processRecord(ctx context.Context, logger *slog.Logger, rec types.StreamRecord) error {
	seq := rec.Kinesis.SequenceNumber

	body, err := rec.DecodeData()
	if err != nil {
		h.recordFailure(observability.ReasonDecode)
		logger.Error("failed to decode record",
			logging.SequenceNumber(seq),
			logging.PartitionKey(rec.Kinesis.PartitionKey),
			logging.Error(err))
		return perrors.NewDecodeError("record "+seq+" is not valid base64", err)
	}

	key := h.ObjectKey(rec)
	start := time.Now()
	err = h.store.Put(ctx, key, body)
	if h.metrics != nil {
		h.metrics.StoreLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		h.recordFailure(observability.ReasonStore)
		logger.Error("failed to store record",
			logging.SequenceNumber(seq),
			logging.ObjectKey(key),
			logging.Error(err))
		return err
	}

	if h.metrics != nil {
		h.metrics.RecordsStored.Inc()
	}
	logger.Debug("record stored", logging.SequenceNumber(seq), logging.ObjectKey(key))
	return nil
}

func (h *Handler) recordFailure(reason string) {
	if h.metrics != nil {
		h.metrics.RecordFailures.WithLabelValues(reason).Inc()
	}
}
