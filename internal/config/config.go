// Package config provides unified configuration for the producer and consumer.
// Defaults reproduce the hard-coded values the pipeline was first deployed with.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Channel backends.
const (
	ChannelKinesis = "kinesis"
	ChannelKafka   = "kafka"
	ChannelLocal   = "local"
)

// Storage backends.
const (
	StorageS3    = "s3"
	StorageMinIO = "minio"
	StorageLocal = "local"
)

// Consumer key strategies and failure modes.
const (
	KeyStrategyRandom     = "random"
	KeyStrategyIdempotent = "idempotent"

	FailureModeFailFast = "fail-fast"
	FailureModeIsolate  = "isolate"
)

// Config holds the unified configuration for both binaries.
type Config struct {
	// Producer event generation settings
	Producer ProducerConfig `json:"producer" yaml:"producer"`

	// Consumer batch handling settings
	Consumer ConsumerConfig `json:"consumer" yaml:"consumer"`

	// Channel is the streaming channel the producer writes to
	Channel ChannelConfig `json:"channel" yaml:"channel"`

	// Storage is the blob store the consumer writes to
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Metrics configuration
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// ProducerConfig holds synthetic event generation settings.
type ProducerConfig struct {
	// Interval is the pause between two submissions
	Interval time.Duration `json:"interval" yaml:"interval"`

	// UserPoolSize bounds the synthetic user ids: user_1 .. user_<UserPoolSize>
	UserPoolSize int `json:"user_pool_size" yaml:"user_pool_size"`

	// Actions is the set of event labels to pick from
	Actions []string `json:"actions" yaml:"actions"`

	// MaxEvents stops the producer after this many submissions (0 = unbounded)
	MaxEvents int `json:"max_events" yaml:"max_events"`

	// Seed fixes the random source (0 = seeded from the clock)
	Seed int64 `json:"seed" yaml:"seed"`
}

// ConsumerConfig holds batch handler settings.
type ConsumerConfig struct {
	// KeyStrategy is random (fresh uuid per attempt) or idempotent
	KeyStrategy string `json:"key_strategy" yaml:"key_strategy"`

	// FailureMode is fail-fast or isolate
	FailureMode string `json:"failure_mode" yaml:"failure_mode"`

	// Workers is the number of concurrent object writes per batch
	Workers int `json:"workers" yaml:"workers"`

	// Prefix is prepended to every object key
	Prefix string `json:"prefix" yaml:"prefix"`
}

// ChannelConfig holds streaming channel settings.
type ChannelConfig struct {
	// Type is the channel backend: kinesis, kafka, local
	Type string `json:"type" yaml:"type"`

	// StreamName is the Kinesis stream (and default Kafka topic)
	StreamName string `json:"stream_name" yaml:"stream_name"`

	// Region is the AWS region of the stream
	Region string `json:"region" yaml:"region"`

	// Endpoint is an optional custom endpoint (LocalStack)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// MaxRetries bounds retries of retryable submit failures (0 = none)
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Kafka configuration (for kafka type)
	Kafka KafkaConfig `json:"kafka" yaml:"kafka"`

	// Local stream configuration (for local type)
	Local LocalStreamConfig `json:"local" yaml:"local"`
}

// KafkaConfig holds Kafka channel settings.
type KafkaConfig struct {
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

// LocalStreamConfig holds settings of the embedded SQLite stream.
type LocalStreamConfig struct {
	// Path is the SQLite database file
	Path string `json:"path" yaml:"path"`

	// Shards is the number of shards partition keys are spread over
	Shards int `json:"shards" yaml:"shards"`

	// BatchSize is the maximum number of records per delivered batch
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// PollInterval is the delay between two polls of the trigger
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
}

// StorageConfig holds blob store settings.
type StorageConfig struct {
	// Type is the storage type: s3, minio, local
	Type string `json:"type" yaml:"type"`

	// Bucket is the target bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// MaxRetries bounds retries of failed writes (0 = none)
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`

	// MinIO configuration (for minio type)
	MinIO MinIOConfig `json:"minio" yaml:"minio"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// MinIOConfig holds MinIO storage configuration.
type MinIOConfig struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	AccessKey string `json:"access_key" yaml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
	UseTLS    bool   `json:"use_tls" yaml:"use_tls"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `json:"level" yaml:"level"`

	// Format is json or text
	Format string `json:"format" yaml:"format"`
}

// MetricsConfig holds the metrics endpoint settings.
type MetricsConfig struct {
	// Addr is the listen address for /metrics and /health (empty = disabled)
	Addr string `json:"addr" yaml:"addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Producer: ProducerConfig{
			Interval:     2 * time.Second,
			UserPoolSize: 5,
			Actions:      []string{"login", "logout"},
		},
		Consumer: ConsumerConfig{
			KeyStrategy: KeyStrategyRandom,
			FailureMode: FailureModeFailFast,
			Workers:     1,
		},
		Channel: ChannelConfig{
			Type:       ChannelKinesis,
			StreamName: "user-activity-stream",
			Region:     "us-east-1",
			Local: LocalStreamConfig{
				Path:         "./data/activitysink/stream.db",
				Shards:       2,
				BatchSize:    100,
				PollInterval: time.Second,
			},
		},
		Storage: StorageConfig{
			Type:   StorageS3,
			Bucket: "my-kinesis-data-bucket",
			Path:   "./data/activitysink/objects",
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// KafkaTopic returns the Kafka topic, falling back to the stream name.
func (c *Config) KafkaTopic() string {
	if c.Channel.Kafka.Topic != "" {
		return c.Channel.Kafka.Topic
	}
	return c.Channel.StreamName
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Producer.Interval <= 0 {
		return fmt.Errorf("producer.interval must be positive, got %v", c.Producer.Interval)
	}
	if c.Producer.UserPoolSize < 1 {
		return fmt.Errorf("producer.user_pool_size must be at least 1, got %d", c.Producer.UserPoolSize)
	}
	if len(c.Producer.Actions) == 0 {
		return fmt.Errorf("producer.actions must not be empty")
	}
	for _, a := range c.Producer.Actions {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("producer.actions must not contain empty labels")
		}
	}
	if c.Producer.MaxEvents < 0 {
		return fmt.Errorf("producer.max_events must not be negative, got %d", c.Producer.MaxEvents)
	}

	switch c.Consumer.KeyStrategy {
	case KeyStrategyRandom, KeyStrategyIdempotent:
	default:
		return fmt.Errorf("invalid consumer.key_strategy: %s (must be random or idempotent)", c.Consumer.KeyStrategy)
	}
	switch c.Consumer.FailureMode {
	case FailureModeFailFast, FailureModeIsolate:
	default:
		return fmt.Errorf("invalid consumer.failure_mode: %s (must be fail-fast or isolate)", c.Consumer.FailureMode)
	}
	if c.Consumer.Workers < 1 {
		return fmt.Errorf("consumer.workers must be at least 1, got %d", c.Consumer.Workers)
	}

	switch c.Channel.Type {
	case ChannelKinesis:
		if c.Channel.StreamName == "" {
			return fmt.Errorf("channel.stream_name is required when channel type is kinesis")
		}
	case ChannelKafka:
		if len(c.Channel.Kafka.Brokers) == 0 {
			return fmt.Errorf("channel.kafka.brokers is required when channel type is kafka")
		}
		if c.KafkaTopic() == "" {
			return fmt.Errorf("channel.kafka.topic or channel.stream_name is required when channel type is kafka")
		}
	case ChannelLocal:
		if c.Channel.Local.Path == "" {
			return fmt.Errorf("channel.local.path is required when channel type is local")
		}
	default:
		return fmt.Errorf("invalid channel type: %s (must be kinesis, kafka, or local)", c.Channel.Type)
	}
	if c.Channel.MaxRetries < 0 {
		return fmt.Errorf("channel.max_retries must not be negative, got %d", c.Channel.MaxRetries)
	}
	if c.Channel.Local.Shards < 1 {
		return fmt.Errorf("channel.local.shards must be at least 1, got %d", c.Channel.Local.Shards)
	}
	if c.Channel.Local.BatchSize < 1 {
		return fmt.Errorf("channel.local.batch_size must be at least 1, got %d", c.Channel.Local.BatchSize)
	}

	switch c.Storage.Type {
	case StorageS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required when storage type is s3")
		}
	case StorageMinIO:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required when storage type is minio")
		}
		if c.Storage.MinIO.Endpoint == "" {
			return fmt.Errorf("storage.minio.endpoint is required when storage type is minio")
		}
	case StorageLocal:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required when storage type is local")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be s3, minio, or local)", c.Storage.Type)
	}
	if c.Storage.MaxRetries < 0 {
		return fmt.Errorf("storage.max_retries must not be negative, got %d", c.Storage.MaxRetries)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the ACTIVITYSINK_ prefix.
func LoadFromEnv(cfg *Config) {
	// Producer configuration
	if v := os.Getenv("ACTIVITYSINK_PRODUCER_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Producer.Interval = d
		}
	}
	if v := os.Getenv("ACTIVITYSINK_PRODUCER_USER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Producer.UserPoolSize = n
		}
	}
	if v := os.Getenv("ACTIVITYSINK_PRODUCER_ACTIONS"); v != "" {
		cfg.Producer.Actions = splitList(v)
	}
	if v := os.Getenv("ACTIVITYSINK_PRODUCER_MAX_EVENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Producer.MaxEvents = n
		}
	}

	// Consumer configuration
	if v := os.Getenv("ACTIVITYSINK_KEY_STRATEGY"); v != "" {
		cfg.Consumer.KeyStrategy = v
	}
	if v := os.Getenv("ACTIVITYSINK_FAILURE_MODE"); v != "" {
		cfg.Consumer.FailureMode = v
	}
	if v := os.Getenv("ACTIVITYSINK_CONSUMER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Consumer.Workers = n
		}
	}
	if v := os.Getenv("ACTIVITYSINK_OBJECT_PREFIX"); v != "" {
		cfg.Consumer.Prefix = v
	}

	// Channel configuration
	if v := os.Getenv("ACTIVITYSINK_CHANNEL_TYPE"); v != "" {
		cfg.Channel.Type = v
	}
	if v := os.Getenv("ACTIVITYSINK_STREAM_NAME"); v != "" {
		cfg.Channel.StreamName = v
	}
	if v := os.Getenv("ACTIVITYSINK_REGION"); v != "" {
		cfg.Channel.Region = v
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("ACTIVITYSINK_CHANNEL_ENDPOINT"); v != "" {
		cfg.Channel.Endpoint = v
	}
	if v := os.Getenv("ACTIVITYSINK_CHANNEL_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Channel.MaxRetries = n
		}
	}
	if v := os.Getenv("ACTIVITYSINK_KAFKA_BROKERS"); v != "" {
		cfg.Channel.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("ACTIVITYSINK_KAFKA_TOPIC"); v != "" {
		cfg.Channel.Kafka.Topic = v
	}
	if v := os.Getenv("ACTIVITYSINK_LOCAL_STREAM_PATH"); v != "" {
		cfg.Channel.Local.Path = v
	}

	// Storage configuration
	if v := os.Getenv("ACTIVITYSINK_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("ACTIVITYSINK_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("ACTIVITYSINK_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("ACTIVITYSINK_STORAGE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Storage.MaxRetries = n
		}
	}
	if v := os.Getenv("ACTIVITYSINK_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
		cfg.Storage.S3.UsePathStyle = true
	}
	if v := os.Getenv("ACTIVITYSINK_MINIO_ENDPOINT"); v != "" {
		cfg.Storage.MinIO.Endpoint = v
	}
	if v := os.Getenv("ACTIVITYSINK_MINIO_ACCESS_KEY"); v != "" {
		cfg.Storage.MinIO.AccessKey = v
	}
	if v := os.Getenv("ACTIVITYSINK_MINIO_SECRET_KEY"); v != "" {
		cfg.Storage.MinIO.SecretKey = v
	}

	// Logging and metrics
	if v := os.Getenv("ACTIVITYSINK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ACTIVITYSINK_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("ACTIVITYSINK_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

// Load builds a configuration from defaults, an optional file and the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		cfg, err = LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	}
	LoadFromEnv(cfg)
	return cfg, nil
}

// EnsureDirectories creates the directories needed by local backends.
func (c *Config) EnsureDirectories() error {
	var dirs []string
	if c.Channel.Type == ChannelLocal {
		dirs = append(dirs, filepath.Dir(c.Channel.Local.Path))
	}
	if c.Storage.Type == StorageLocal {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// UnmarshalJSON accepts the interval either as a duration string ("5s") or
// as a number of nanoseconds, matching what the YAML loader accepts.
func (p *ProducerConfig) UnmarshalJSON(data []byte) error {
	type plain ProducerConfig
	aux := struct {
		*plain
		Interval interface{} `json:"interval"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d, ok, err := parseJSONDuration(aux.Interval)
	if err != nil {
		return fmt.Errorf("producer.interval: %w", err)
	}
	if ok {
		p.Interval = d
	}
	return nil
}

// UnmarshalJSON accepts poll_interval as a duration string or nanoseconds.
func (l *LocalStreamConfig) UnmarshalJSON(data []byte) error {
	type plain LocalStreamConfig
	aux := struct {
		*plain
		PollInterval interface{} `json:"poll_interval"`
	}{plain: (*plain)(l)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d, ok, err := parseJSONDuration(aux.PollInterval)
	if err != nil {
		return fmt.Errorf("channel.local.poll_interval: %w", err)
	}
	if ok {
		l.PollInterval = d
	}
	return nil
}

func parseJSONDuration(v interface{}) (time.Duration, bool, error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case string:
		d, err := time.ParseDuration(x)
		if err != nil {
			return 0, false, err
		}
		return d, true, nil
	case float64:
		return time.Duration(x), true, nil
	default:
		return 0, false, fmt.Errorf("unsupported duration value %v", v)
	}
}
