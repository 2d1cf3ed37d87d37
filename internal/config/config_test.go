package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_MatchesDeployedLiterals(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Channel.StreamName != "user-activity-stream" {
		t.Errorf("stream name = %q", cfg.Channel.StreamName)
	}
	if cfg.Channel.Region != "us-east-1" {
		t.Errorf("region = %q", cfg.Channel.Region)
	}
	if cfg.Storage.Bucket != "my-kinesis-data-bucket" {
		t.Errorf("bucket = %q", cfg.Storage.Bucket)
	}
	if cfg.Producer.Interval != 2*time.Second {
		t.Errorf("interval = %v", cfg.Producer.Interval)
	}
	if cfg.Producer.UserPoolSize != 5 {
		t.Errorf("user pool size = %d", cfg.Producer.UserPoolSize)
	}
	if len(cfg.Producer.Actions) != 2 || cfg.Producer.Actions[0] != "login" || cfg.Producer.Actions[1] != "logout" {
		t.Errorf("actions = %v", cfg.Producer.Actions)
	}
	if cfg.Consumer.KeyStrategy != KeyStrategyRandom || cfg.Consumer.FailureMode != FailureModeFailFast {
		t.Errorf("consumer defaults = %+v", cfg.Consumer)
	}
	if cfg.Channel.MaxRetries != 0 || cfg.Storage.MaxRetries != 0 {
		t.Error("retries must be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative interval", func(c *Config) { c.Producer.Interval = -time.Second }},
		{"zero interval", func(c *Config) { c.Producer.Interval = 0 }},
		{"empty pool", func(c *Config) { c.Producer.UserPoolSize = 0 }},
		{"no actions", func(c *Config) { c.Producer.Actions = nil }},
		{"blank action", func(c *Config) { c.Producer.Actions = []string{"login", " "} }},
		{"bad key strategy", func(c *Config) { c.Consumer.KeyStrategy = "content-hash" }},
		{"bad failure mode", func(c *Config) { c.Consumer.FailureMode = "retry" }},
		{"zero workers", func(c *Config) { c.Consumer.Workers = 0 }},
		{"bad channel", func(c *Config) { c.Channel.Type = "sqs" }},
		{"kinesis without stream", func(c *Config) { c.Channel.StreamName = "" }},
		{"kafka without brokers", func(c *Config) { c.Channel.Type = ChannelKafka }},
		{"bad storage", func(c *Config) { c.Storage.Type = "gcs" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Bucket = "" }},
		{"minio without endpoint", func(c *Config) { c.Storage.Type = StorageMinIO }},
		{"negative retries", func(c *Config) { c.Storage.MaxRetries = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
producer:
  interval: 500ms
  actions: [login, logout, purchase]
consumer:
  key_strategy: idempotent
  workers: 4
channel:
  type: kafka
  kafka:
    brokers: ["localhost:9092"]
storage:
  type: local
  path: /tmp/objects
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Producer.Interval != 500*time.Millisecond {
		t.Errorf("interval = %v", cfg.Producer.Interval)
	}
	if len(cfg.Producer.Actions) != 3 {
		t.Errorf("actions = %v", cfg.Producer.Actions)
	}
	if cfg.Producer.UserPoolSize != 5 {
		t.Errorf("unset fields should keep defaults, pool = %d", cfg.Producer.UserPoolSize)
	}
	if cfg.Consumer.KeyStrategy != KeyStrategyIdempotent || cfg.Consumer.Workers != 4 {
		t.Errorf("consumer = %+v", cfg.Consumer)
	}
	if cfg.KafkaTopic() != "user-activity-stream" {
		t.Errorf("kafka topic should fall back to stream name, got %q", cfg.KafkaTopic())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config should be valid: %v", err)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"storage":{"bucket":"other-bucket"},"logging":{"level":"debug"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Storage.Bucket != "other-bucket" || cfg.Logging.Level != "debug" {
		t.Errorf("unexpected config: %+v %+v", cfg.Storage, cfg.Logging)
	}
}

func TestLoadFromFile_JSONDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"producer":{"interval":"5s","user_pool_size":3},"channel":{"local":{"poll_interval":"250ms"}}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Producer.Interval != 5*time.Second {
		t.Errorf("interval = %v, want 5s", cfg.Producer.Interval)
	}
	if cfg.Producer.UserPoolSize != 3 {
		t.Errorf("user_pool_size = %d, want 3", cfg.Producer.UserPoolSize)
	}
	if len(cfg.Producer.Actions) == 0 {
		t.Error("defaults for unset producer fields were lost")
	}
	if cfg.Channel.Local.PollInterval != 250*time.Millisecond {
		t.Errorf("poll_interval = %v, want 250ms", cfg.Channel.Local.PollInterval)
	}
}

func TestLoadFromFile_JSONNanosecondInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"producer":{"interval":1000000}}`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Producer.Interval != time.Millisecond {
		t.Errorf("interval = %v, want 1ms", cfg.Producer.Interval)
	}
}

func TestLoadFromFile_JSONBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"producer":{"interval":"soon"}}`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for malformed duration")
	}
}

func TestLoadFromFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ACTIVITYSINK_PRODUCER_INTERVAL", "250ms")
	t.Setenv("ACTIVITYSINK_PRODUCER_ACTIONS", "login, logout ,view")
	t.Setenv("ACTIVITYSINK_BUCKET", "env-bucket")
	t.Setenv("ACTIVITYSINK_REGION", "eu-west-1")
	t.Setenv("ACTIVITYSINK_FAILURE_MODE", FailureModeIsolate)
	t.Setenv("ACTIVITYSINK_S3_ENDPOINT", "http://localhost:4566")
	t.Setenv("ACTIVITYSINK_KAFKA_BROKERS", "a:9092,b:9092")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Producer.Interval != 250*time.Millisecond {
		t.Errorf("interval = %v", cfg.Producer.Interval)
	}
	if len(cfg.Producer.Actions) != 3 || cfg.Producer.Actions[1] != "logout" {
		t.Errorf("actions = %v", cfg.Producer.Actions)
	}
	if cfg.Storage.Bucket != "env-bucket" {
		t.Errorf("bucket = %q", cfg.Storage.Bucket)
	}
	if cfg.Channel.Region != "eu-west-1" || cfg.Storage.S3.Region != "eu-west-1" {
		t.Errorf("region not applied to both channel and storage")
	}
	if cfg.Consumer.FailureMode != FailureModeIsolate {
		t.Errorf("failure mode = %q", cfg.Consumer.FailureMode)
	}
	if !cfg.Storage.S3.UsePathStyle {
		t.Error("custom S3 endpoint should enable path-style addressing")
	}
	if len(cfg.Channel.Kafka.Brokers) != 2 {
		t.Errorf("brokers = %v", cfg.Channel.Kafka.Brokers)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.Channel.Type = ChannelLocal
	cfg.Channel.Local.Path = filepath.Join(base, "stream", "stream.db")
	cfg.Storage.Type = StorageLocal
	cfg.Storage.Path = filepath.Join(base, "objects")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{filepath.Join(base, "stream"), cfg.Storage.Path} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist", dir)
		}
	}
}
