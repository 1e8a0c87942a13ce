package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"PIPESTATS_INPUT",
	"PIPESTATS_OUTPUT",
	"PIPESTATS_INTERVAL",
	"PIPESTATS_UNIT",
	"PIPESTATS_BLOCKING",
	"PIPESTATS_VERBOSE",
	"PIPESTATS_COUNTS",
	"PIPESTATS_BUFFER_SIZE",
	"PIPESTATS_RATE_LIMIT",
	"PIPESTATS_METRICS_ADDR",
	"PIPESTATS_LOG_LEVEL",
}

// clearEnv unsets every PIPESTATS_* variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if cfg.Input != "-" {
			t.Errorf("Expected default Input '-', got: %s", cfg.Input)
		}
		if cfg.Output != "-" {
			t.Errorf("Expected default Output '-', got: %s", cfg.Output)
		}
		if cfg.ReportInterval != 2*time.Second {
			t.Errorf("Expected default interval 2s, got: %v", cfg.ReportInterval)
		}
		if cfg.IOMode != ModePoll {
			t.Errorf("Expected default mode poll, got: %s", cfg.IOMode)
		}
		if cfg.BufferSize != DefaultBufferSize {
			t.Errorf("Expected default buffer size %d, got: %d", DefaultBufferSize, cfg.BufferSize)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("Expected default LogLevel 'info', got: %s", cfg.LogLevel)
		}
	})

	t.Run("from environment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PIPESTATS_INPUT", "in.bin")
		t.Setenv("PIPESTATS_INTERVAL", "0.5")
		t.Setenv("PIPESTATS_UNIT", "MB")
		t.Setenv("PIPESTATS_BLOCKING", "true")
		t.Setenv("PIPESTATS_VERBOSE", "1")
		t.Setenv("PIPESTATS_COUNTS", "true")
		t.Setenv("PIPESTATS_BUFFER_SIZE", "4KiB")
		t.Setenv("PIPESTATS_RATE_LIMIT", "10MiB")
		t.Setenv("PIPESTATS_LOG_LEVEL", "debug")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if cfg.Input != "in.bin" {
			t.Errorf("Expected Input from env, got: %s", cfg.Input)
		}
		if cfg.ReportInterval != 500*time.Millisecond {
			t.Errorf("Expected interval 500ms, got: %v", cfg.ReportInterval)
		}
		if cfg.Unit != "MB" {
			t.Errorf("Expected Unit from env, got: %s", cfg.Unit)
		}
		if cfg.IOMode != ModeBlocking {
			t.Errorf("Expected blocking mode, got: %s", cfg.IOMode)
		}
		if !cfg.Verbose || !cfg.Counts {
			t.Errorf("Expected verbose and counts from env, got: %v %v", cfg.Verbose, cfg.Counts)
		}
		if cfg.BufferSize != 4096 {
			t.Errorf("Expected buffer size 4096, got: %d", cfg.BufferSize)
		}
		if cfg.RateLimit != 10*1024*1024 {
			t.Errorf("Expected rate limit 10MiB, got: %d", cfg.RateLimit)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("Expected LogLevel from env, got: %s", cfg.LogLevel)
		}
	})

	t.Run("invalid environment value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PIPESTATS_BLOCKING", "sometimes")

		if _, err := Load(); err == nil {
			t.Error("Expected error for invalid PIPESTATS_BLOCKING")
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		if err := Default().Validate(); err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"negative interval", func(c *Config) { c.ReportInterval = -time.Second }, "interval"},
		{"unknown unit", func(c *Config) { c.Unit = "TB" }, "unit"},
		{"unknown mode", func(c *Config) { c.IOMode = Mode("async") }, "mode"},
		{"zero buffer", func(c *Config) { c.BufferSize = 0 }, "buffer size"},
		{"huge buffer", func(c *Config) { c.BufferSize = MaxBufferSize + 1 }, "buffer size"},
		{"missing input", func(c *Config) { c.Input = "" }, "input"},
		{"missing output", func(c *Config) { c.Output = "" }, "output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Expected error for %s", tt.name)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error to mention %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
	}{
		{"2", 2 * time.Second},
		{"0", 0},
		{"0.25", 250 * time.Millisecond},
		{"1500ms", 1500 * time.Millisecond},
		{"1m", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseInterval(tt.input)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %v, got: %v", tt.expected, got)
			}
		})
	}

	if _, err := ParseInterval("soon"); err == nil {
		t.Error("Expected error for invalid interval")
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		input    string
		expected uint64
	}{
		{"", 0},
		{"0", 0},
		{"10MiB", 10 * 1024 * 1024},
		{"500k", 500000},
		{"1.5 MB/s", 1500000},
		{"2KiB/sec", 2048},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRate(tt.input)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %d, got: %d", tt.expected, got)
			}
		})
	}

	if _, err := ParseRate("fast"); err == nil {
		t.Error("Expected error for invalid rate")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipestats.toml")
	content := `
input = "data.bin"
interval = 0.5
unit = "KB"
blocking = true
counts = true
rate_limit = "1MiB"
json = true
colour = "red"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	fc, unknown, err := LoadFile(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(unknown) != 1 || unknown[0] != "colour" {
		t.Errorf("Expected unknown key 'colour', got: %v", unknown)
	}

	cfg := Default()
	if err := cfg.ApplyFile(fc); err != nil {
		t.Fatalf("Expected no error applying file, got: %v", err)
	}

	if cfg.Input != "data.bin" {
		t.Errorf("Expected Input from file, got: %s", cfg.Input)
	}
	if cfg.Output != "-" {
		t.Errorf("Expected Output to keep default, got: %s", cfg.Output)
	}
	if cfg.ReportInterval != 500*time.Millisecond {
		t.Errorf("Expected interval 500ms, got: %v", cfg.ReportInterval)
	}
	if cfg.Unit != "KB" {
		t.Errorf("Expected Unit from file, got: %s", cfg.Unit)
	}
	if cfg.IOMode != ModeBlocking {
		t.Errorf("Expected blocking mode, got: %s", cfg.IOMode)
	}
	if !cfg.Counts || !cfg.JSONLogs {
		t.Errorf("Expected counts and json from file, got: %v %v", cfg.Counts, cfg.JSONLogs)
	}
	if cfg.RateLimit != 1024*1024 {
		t.Errorf("Expected rate limit 1MiB, got: %d", cfg.RateLimit)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("interval = = 2"), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	if _, _, err := LoadFile(path); err == nil {
		t.Error("Expected error for malformed file")
	}
}

func TestFileThenEnvPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("PIPESTATS_UNIT", "GB")

	unit := "KB"
	cfg := Default()
	if err := cfg.ApplyFile(&FileConfig{Unit: &unit}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Unit != "GB" {
		t.Errorf("Expected environment to override file, got: %s", cfg.Unit)
	}
}
