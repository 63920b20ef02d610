// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Sink type names accepted in the sinks list.
const (
	SinkStdout   = "stdout"
	SinkEvents   = "events"
	SinkTracking = "tracking"
	SinkKafka    = "kafka"
	SinkRedis    = "redis"
)

// DefaultSettleInterval is how long the worker stays alive after recording
// its metric so that the sidecar metrics collector can attach by pid and
// scrape the result. A blind delay: no synchronization channel to the
// sidecar exists.
const DefaultSettleInterval = 10 * time.Second

// Config holds all trial worker configuration.
type Config struct {
	// Trial computation inputs
	Nested NestedConfig `yaml:"nested"`

	// Metric sink selection, comma-separated (stdout, events, tracking, kafka, redis)
	Sinks string `envconfig:"TRIALRUN_SINKS" yaml:"sinks"`

	// Directory for the structured scalar event file (events sink)
	EventDir string `envconfig:"TRIALRUN_EVENT_DIR" yaml:"event_dir"`

	// Settling interval held between the last metric write and process exit
	Settle time.Duration `envconfig:"TRIALRUN_SETTLE" yaml:"settle"`

	// Tracking service configuration
	Tracking TrackingConfig `yaml:"tracking"`

	// Kafka configuration
	Kafka KafkaConfig `yaml:"kafka"`

	// Redis configuration
	Redis RedisConfig `yaml:"redis"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// NestedConfig carries the trial computation hyperparameters.
type NestedConfig struct {
	Hyperparameter float64 `envconfig:"TRIALRUN_HYPERPARAMETER" yaml:"hyperparameter"`
}

// TrackingConfig holds tracking-service recorder settings.
type TrackingConfig struct {
	URI        string        `envconfig:"TRIALRUN_TRACKING_URI" yaml:"uri"`
	PathPrefix string        `envconfig:"TRIALRUN_TRACKING_PREFIX" yaml:"path_prefix"`
	Timeout    time.Duration `envconfig:"TRIALRUN_TRACKING_TIMEOUT" yaml:"timeout"`
}

// KafkaConfig holds Kafka metric sink settings.
type KafkaConfig struct {
	Brokers  string `envconfig:"TRIALRUN_KAFKA_BROKERS" yaml:"brokers"`
	Topic    string `envconfig:"TRIALRUN_KAFKA_TOPIC" yaml:"topic"`
	ClientID string `envconfig:"TRIALRUN_KAFKA_CLIENT_ID" yaml:"client_id"`
}

// RedisConfig holds Redis metric sink settings.
type RedisConfig struct {
	URL    string        `envconfig:"TRIALRUN_REDIS_URL" yaml:"url"`
	Prefix string        `envconfig:"TRIALRUN_REDIS_PREFIX" yaml:"prefix"`
	TTL    time.Duration `envconfig:"TRIALRUN_REDIS_TTL" yaml:"ttl"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"TRIALRUN_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"TRIALRUN_LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Sinks = SinkStdout
	cfg.Settle = DefaultSettleInterval

	cfg.Tracking = TrackingConfig{
		PathPrefix: "/Shared/trialrun",
		Timeout:    30 * time.Second,
	}

	cfg.Kafka = KafkaConfig{
		Topic:    "trial.metrics",
		ClientID: "trialrun",
	}

	cfg.Redis = RedisConfig{
		Prefix: "trialrun:metrics:",
		TTL:    24 * time.Hour,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// SinkTypes returns the parsed sink selection list.
func (c *Config) SinkTypes() []string {
	var types []string
	for _, s := range strings.Split(c.Sinks, ",") {
		if s = strings.TrimSpace(s); s != "" {
			types = append(types, strings.ToLower(s))
		}
	}
	return types
}

// HasSink reports whether the given sink type is selected.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.SinkTypes() {
		if s == name {
			return true
		}
	}
	return false
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Sink validation
	validSinks := map[string]bool{
		SinkStdout:   true,
		SinkEvents:   true,
		SinkTracking: true,
		SinkKafka:    true,
		SinkRedis:    true,
	}
	types := c.SinkTypes()
	if len(types) == 0 {
		errs = append(errs, "at least one sink must be selected")
	}
	for _, s := range types {
		if !validSinks[s] {
			errs = append(errs, fmt.Sprintf("invalid sink type: %s (must be stdout, events, tracking, kafka, or redis)", s))
		}
	}

	// Settle validation
	if c.Settle < 0 {
		errs = append(errs, "settle must not be negative")
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Dump renders the effective configuration as YAML. The worker prints this
// at startup so trial logs record exactly what was run.
func (c *Config) Dump() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<unserializable config: %v>", err)
	}
	return string(data)
}
