package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/activitysink/activitysink/internal/app"
	"github.com/activitysink/activitysink/internal/config"
	"github.com/activitysink/activitysink/internal/logging"
	"github.com/activitysink/activitysink/internal/observability"
	"github.com/activitysink/activitysink/internal/producer"
	"github.com/activitysink/activitysink/internal/server"
	"github.com/activitysink/activitysink/pkg/types"
)

type rootOptions struct {
	configFile  string
	stream      string
	region      string
	channelType string
	interval    time.Duration
	maxEvents   int
	logLevel    string
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "activity-producer",
		Short: "Submit synthetic user-activity events to a stream",
		Long: `activity-producer generates a random login/logout event for a user from a
small pool every interval and submits it to the configured stream, keyed by
user id. It runs until interrupted, until --max-events is reached, or until a
submission fails.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProducer(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flags.StringVar(&opts.stream, "stream", "", "Stream name (default user-activity-stream)")
	flags.StringVar(&opts.region, "region", "", "AWS region (default us-east-1)")
	flags.StringVar(&opts.channelType, "channel", "", "Channel type: kinesis, kafka, local")
	flags.DurationVar(&opts.interval, "interval", 0, "Pause between submissions (default 2s)")
	flags.IntVar(&opts.maxEvents, "max-events", 0, "Stop after this many events (0 = run until interrupted)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the producer loop (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runProducer(cmd, opts)
			},
		},
		newGenerateCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print sample event payloads without submitting them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			gen, err := producer.NewGenerator(cfg.Producer.UserPoolSize, cfg.Producer.Actions,
				producer.WithSeed(cfg.Producer.Seed))
			if err != nil {
				return err
			}
			for i := 0; i < count; i++ {
				payload, err := types.EncodeEvent(gen.Generate())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 5, "Number of events to print")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{"version": version, "commit": commit}
			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(info)
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
	if flags.Changed("stream") {
		cfg.Channel.StreamName = opts.stream
	}
	if flags.Changed("region") {
		cfg.Channel.Region = opts.region
	}
	if flags.Changed("channel") {
		cfg.Channel.Type = opts.channelType
	}
	if flags.Changed("interval") {
		cfg.Producer.Interval = opts.interval
	}
	if flags.Changed("max-events") {
		cfg.Producer.MaxEvents = opts.maxEvents
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = opts.metricsAddr
	}

	if err := app.Prepare(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runProducer(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger := app.NewLoggerWithWriter(cfg, "activity-producer", cmd.OutOrStdout())
	metrics := observability.NewMetrics(app.MetricsNamespace)
	sm := server.NewShutdownManager(cmd.Context(), 30*time.Second, logger)

	if cfg.Metrics.Addr != "" {
		ms := server.NewMetricsServer(cfg.Metrics.Addr, metrics.Handler(), sm)
		if err := ms.Start(); err != nil {
			sm.Shutdown("metrics server failed")
			return err
		}
		logger.Info("metrics server listening", slog.String("addr", ms.Addr()))
	}

	ch, err := app.NewChannel(sm.Context(), cfg, logger)
	if err != nil {
		sm.Shutdown("channel setup failed")
		return fmt.Errorf("failed to create channel: %w", err)
	}
	sm.RegisterCloser(ch)

	p, err := app.NewProducer(cfg, ch, logger, metrics)
	if err != nil {
		sm.Shutdown("producer setup failed")
		return err
	}

	logger.Info("producer started",
		slog.String("channel", cfg.Channel.Type),
		slog.String("stream", cfg.Channel.StreamName),
		slog.Duration("interval", cfg.Producer.Interval))

	runErr := p.Run(sm.Context())

	reason := "producer stopped"
	if runErr != nil {
		reason = "submission failed"
	}
	if err := sm.Shutdown(reason); err != nil {
		logger.Warn("shutdown incomplete", logging.Error(err))
	}
	return runErr
}
