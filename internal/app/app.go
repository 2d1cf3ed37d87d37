// Package app wires configuration to concrete channels, stores and handlers
// for the producer and consumer binaries.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/activitysink/activitysink/internal/channel"
	"github.com/activitysink/activitysink/internal/config"
	"github.com/activitysink/activitysink/internal/consumer"
	"github.com/activitysink/activitysink/internal/localstream"
	"github.com/activitysink/activitysink/internal/logging"
	"github.com/activitysink/activitysink/internal/observability"
	"github.com/activitysink/activitysink/internal/producer"
	"github.com/activitysink/activitysink/internal/storage"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "activitysink"

// Prepare validates cfg and creates directories needed by local backends.
func Prepare(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	return nil
}

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg *config.Config, service string) *slog.Logger {
	return NewLoggerWithWriter(cfg, service, os.Stdout)
}

// NewLoggerWithWriter is NewLogger writing to w.
func NewLoggerWithWriter(cfg *config.Config, service string, w io.Writer) *slog.Logger {
	return logging.NewWithWriter(w, logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format).
		With(logging.Service(service))
}

// OpenLocalStream opens the embedded stream described by the channel section.
func OpenLocalStream(cfg *config.Config) (*localstream.Stream, error) {
	return localstream.Open(cfg.Channel.Local.Path, cfg.Channel.Local.Shards)
}

// NewChannel creates the channel selected by channel.type. When
// channel.max_retries is positive the channel is wrapped with retries.
func NewChannel(ctx context.Context, cfg *config.Config, logger *slog.Logger) (channel.Channel, error) {
	var (
		ch  channel.Channel
		err error
	)

	switch cfg.Channel.Type {
	case config.ChannelKinesis:
		ch, err = channel.NewKinesisChannel(ctx, channel.KinesisConfig{
			StreamName: cfg.Channel.StreamName,
			Region:     cfg.Channel.Region,
			Endpoint:   cfg.Channel.Endpoint,
		})
	case config.ChannelKafka:
		ch = channel.NewKafkaChannel(cfg.Channel.Kafka.Brokers, cfg.KafkaTopic())
	case config.ChannelLocal:
		ch, err = OpenLocalStream(cfg)
	default:
		return nil, fmt.Errorf("unsupported channel type: %s", cfg.Channel.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Channel.MaxRetries > 0 {
		ch = channel.NewRetrying(ch, cfg.Channel.MaxRetries, logger)
	}
	return ch, nil
}

// NewObjectStorage creates the blob store selected by storage.type.
func NewObjectStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Type {
	case config.StorageLocal:
		return storage.NewLocalStorage(cfg.Storage.Path)
	case config.StorageS3:
		s3Cfg := storage.DefaultS3Config()
		if cfg.Storage.S3.Region != "" {
			s3Cfg.Region = cfg.Storage.S3.Region
		}
		s3Cfg.Endpoint = cfg.Storage.S3.Endpoint
		s3Cfg.UsePathStyle = cfg.Storage.S3.UsePathStyle
		s3Cfg.MaxRetries = cfg.Storage.MaxRetries
		return storage.NewS3Storage(ctx, cfg.Storage.Bucket, s3Cfg)
	case config.StorageMinIO:
		m, err := storage.NewMinIOStorage(cfg.Storage.Bucket, storage.MinIOConfig{
			Endpoint:   cfg.Storage.MinIO.Endpoint,
			AccessKey:  cfg.Storage.MinIO.AccessKey,
			SecretKey:  cfg.Storage.MinIO.SecretKey,
			UseTLS:     cfg.Storage.MinIO.UseTLS,
			MaxRetries: cfg.Storage.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		if err := m.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure bucket %s: %w", cfg.Storage.Bucket, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// NewProducer builds the event generator and producer loop around ch.
func NewProducer(cfg *config.Config, ch channel.Channel, logger *slog.Logger, metrics *observability.Metrics) (*producer.Producer, error) {
	gen, err := producer.NewGenerator(cfg.Producer.UserPoolSize, cfg.Producer.Actions,
		producer.WithSeed(cfg.Producer.Seed))
	if err != nil {
		return nil, err
	}
	return producer.New(gen, ch, producer.Config{
		Interval:  cfg.Producer.Interval,
		MaxEvents: cfg.Producer.MaxEvents,
	}, logger, metrics), nil
}

// NewHandler builds the consumer handler writing to store.
func NewHandler(cfg *config.Config, store storage.ObjectWriter, logger *slog.Logger, metrics *observability.Metrics) (*consumer.Handler, error) {
	return consumer.NewHandler(store, consumer.Options{
		KeyStrategy: consumer.KeyStrategy(cfg.Consumer.KeyStrategy),
		FailureMode: consumer.FailureMode(cfg.Consumer.FailureMode),
		Workers:     cfg.Consumer.Workers,
		Prefix:      cfg.Consumer.Prefix,
	}, logger, metrics)
}
