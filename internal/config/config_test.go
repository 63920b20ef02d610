package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Sinks != SinkStdout {
		t.Errorf("Sinks = %q, want %q", cfg.Sinks, SinkStdout)
	}

	if cfg.Settle != DefaultSettleInterval {
		t.Errorf("Settle = %v, want %v", cfg.Settle, DefaultSettleInterval)
	}

	if cfg.Tracking.PathPrefix != "/Shared/trialrun" {
		t.Errorf("Tracking.PathPrefix = %q, want /Shared/trialrun", cfg.Tracking.PathPrefix)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("TRIALRUN_HYPERPARAMETER", "3.0")
	os.Setenv("TRIALRUN_SINKS", "stdout,events")
	os.Setenv("TRIALRUN_EVENT_DIR", "/tmp/events")
	os.Setenv("TRIALRUN_SETTLE", "2s")
	defer func() {
		os.Unsetenv("TRIALRUN_HYPERPARAMETER")
		os.Unsetenv("TRIALRUN_SINKS")
		os.Unsetenv("TRIALRUN_EVENT_DIR")
		os.Unsetenv("TRIALRUN_SETTLE")
	}()

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Nested.Hyperparameter != 3.0 {
		t.Errorf("Nested.Hyperparameter = %v, want 3.0", cfg.Nested.Hyperparameter)
	}

	if cfg.EventDir != "/tmp/events" {
		t.Errorf("EventDir = %q, want /tmp/events", cfg.EventDir)
	}

	if cfg.Settle != 2*time.Second {
		t.Errorf("Settle = %v, want 2s", cfg.Settle)
	}

	if !cfg.HasSink(SinkEvents) || !cfg.HasSink(SinkStdout) {
		t.Errorf("SinkTypes = %v, want stdout and events", cfg.SinkTypes())
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
nested:
  hyperparameter: 1.5
sinks: "tracking,stdout"
event_dir: "/var/run/trial"
tracking:
  uri: "http://mlflow:5000"
  path_prefix: "/Shared/custom"
log:
  level: warn
  format: json
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Nested.Hyperparameter != 1.5 {
		t.Errorf("Nested.Hyperparameter = %v, want 1.5", cfg.Nested.Hyperparameter)
	}

	if cfg.Tracking.URI != "http://mlflow:5000" {
		t.Errorf("Tracking.URI = %q, want http://mlflow:5000", cfg.Tracking.URI)
	}

	if cfg.Tracking.PathPrefix != "/Shared/custom" {
		t.Errorf("Tracking.PathPrefix = %q, want /Shared/custom", cfg.Tracking.PathPrefix)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %s, want warn", cfg.Log.Level)
	}

	if !cfg.HasSink(SinkTracking) {
		t.Errorf("SinkTypes = %v, want tracking selected", cfg.SinkTypes())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("nested:\n  hyperparameter: 1.0\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	os.Setenv("TRIALRUN_HYPERPARAMETER", "4.0")
	defer os.Unsetenv("TRIALRUN_HYPERPARAMETER")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Nested.Hyperparameter != 4.0 {
		t.Errorf("Nested.Hyperparameter = %v, want env override 4.0", cfg.Nested.Hyperparameter)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid sink type",
			mutate:  func(c *Config) { c.Sinks = "stdout,carrier-pigeon" },
			wantErr: "invalid sink type",
		},
		{
			name:    "no sinks",
			mutate:  func(c *Config) { c.Sinks = " , " },
			wantErr: "at least one sink",
		},
		{
			name:    "negative settle",
			mutate:  func(c *Config) { c.Settle = -time.Second },
			wantErr: "settle must not be negative",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: "invalid log level",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "invalid log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDump(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	cfg.Nested.Hyperparameter = 3.0

	dump := cfg.Dump()
	if !strings.Contains(dump, "hyperparameter: 3") {
		t.Errorf("Dump() missing hyperparameter: %q", dump)
	}
	if !strings.Contains(dump, "sinks: stdout") {
		t.Errorf("Dump() missing sinks: %q", dump)
	}
}
