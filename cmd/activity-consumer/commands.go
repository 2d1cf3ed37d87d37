package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/activitysink/activitysink/internal/app"
	"github.com/activitysink/activitysink/internal/config"
	"github.com/activitysink/activitysink/internal/consumer"
	"github.com/activitysink/activitysink/internal/localstream"
	"github.com/activitysink/activitysink/internal/observability"
	"github.com/activitysink/activitysink/internal/server"
)

type rootOptions struct {
	configFile  string
	storageType string
	bucket      string
	storagePath string
	keyStrategy string
	failureMode string
	workers     int
	prefix      string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "activity-consumer",
		Short: "Store stream-delivered activity records as objects",
		Long: `activity-consumer decodes every record of a delivered batch and writes the
payload unchanged to the blob store as <uuid>.json. With no subcommand it
starts the function runtime loop and waits for invocations.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg, "activity-consumer")
			h, err := buildHandler(cmd, cfg, logger, nil)
			if err != nil {
				return err
			}
			lambda.Start(h.Handle)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flags.StringVar(&opts.storageType, "storage", "", "Storage type: s3, minio, local")
	flags.StringVar(&opts.bucket, "bucket", "", "Target bucket (default my-kinesis-data-bucket)")
	flags.StringVar(&opts.storagePath, "storage-path", "", "Directory for local storage")
	flags.StringVar(&opts.keyStrategy, "key-strategy", "", "Object key strategy: random, idempotent")
	flags.StringVar(&opts.failureMode, "failure-mode", "", "Batch failure mode: fail-fast, isolate")
	flags.IntVar(&opts.workers, "workers", 0, "Concurrent object writes per batch")
	flags.StringVar(&opts.prefix, "prefix", "", "Object key prefix")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(newLocalCmd(opts), newVersionCmd())
	return root
}

func newLocalCmd(opts *rootOptions) *cobra.Command {
	var (
		streamDB    string
		metricsAddr string
		once        bool
	)

	cmd := &cobra.Command{
		Use:   "local",
		Short: "Consume from the embedded local stream instead of the function runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			cfg.Channel.Type = config.ChannelLocal
			if cmd.Flags().Changed("stream-db") {
				cfg.Channel.Local.Path = streamDB
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Metrics.Addr = metricsAddr
			}
			if err := app.Prepare(cfg); err != nil {
				return err
			}

			logger := app.NewLogger(cfg, "activity-consumer")
			metrics := observability.NewMetrics(app.MetricsNamespace)
			sm := server.NewShutdownManager(cmd.Context(), 30*time.Second, logger)
			defer sm.Shutdown("consumer stopped")

			if cfg.Metrics.Addr != "" {
				ms := server.NewMetricsServer(cfg.Metrics.Addr, metrics.Handler(), sm)
				if err := ms.Start(); err != nil {
					return err
				}
			}

			h, err := buildHandler(cmd, cfg, logger, metrics)
			if err != nil {
				return err
			}

			stream, err := app.OpenLocalStream(cfg)
			if err != nil {
				return err
			}
			sm.RegisterCloser(stream)

			trigger := localstream.NewTrigger(stream, localstream.TriggerConfig{
				BatchSize:    cfg.Channel.Local.BatchSize,
				PollInterval: cfg.Channel.Local.PollInterval,
			}, logger)

			if once {
				acked, err := trigger.DeliverOnce(sm.Context(), h.Handle)
				logger.Info("delivery pass complete", slog.Int("acked", acked))
				return err
			}

			logger.Info("consuming local stream",
				slog.String("path", cfg.Channel.Local.Path),
				slog.Int("shards", stream.Shards()))
			return trigger.Run(sm.Context(), h.Handle)
		},
	}
	cmd.Flags().StringVar(&streamDB, "stream-db", "", "Path of the local stream database")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address")
	cmd.Flags().BoolVar(&once, "once", false, "Deliver one batch per shard and exit")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{"version": version, "commit": commit}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(info)
		},
	}
}

// loadConfig applies defaults, file, environment and explicitly set flags in that order.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("storage") {
		cfg.Storage.Type = opts.storageType
	}
	if flags.Changed("bucket") {
		cfg.Storage.Bucket = opts.bucket
	}
	if flags.Changed("storage-path") {
		cfg.Storage.Path = opts.storagePath
	}
	if flags.Changed("key-strategy") {
		cfg.Consumer.KeyStrategy = opts.keyStrategy
	}
	if flags.Changed("failure-mode") {
		cfg.Consumer.FailureMode = opts.failureMode
	}
	if flags.Changed("workers") {
		cfg.Consumer.Workers = opts.workers
	}
	if flags.Changed("prefix") {
		cfg.Consumer.Prefix = opts.prefix
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	return cfg, nil
}

func buildHandler(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*consumer.Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	store, err := app.NewObjectStorage(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage: %w", err)
	}
	return app.NewHandler(cfg, store, logger, metrics)
}
