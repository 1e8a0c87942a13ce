package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/julienstroheker/pipestats/internal/units"
)

const (
	// DefaultReportInterval matches the classic two second cadence
	DefaultReportInterval = 2 * time.Second

	// DefaultBufferSize is the capacity of the transfer buffer
	DefaultBufferSize = 64 * 1024

	// MaxBufferSize bounds the transfer buffer
	MaxBufferSize = 16 * 1024 * 1024

	// StdioTarget selects standard input or standard output
	StdioTarget = "-"
)

// Config holds the settings of a relay run
type Config struct {
	// Input is the source target: "-", a path, tcp://host:port or ws(s)://...
	Input string

	// Output is the sink target, same forms as Input
	Output string

	// ReportInterval is the periodic report cadence; zero disables periodic reports
	ReportInterval time.Duration

	// Unit is the display unit name (auto, bytes, KB, MB, GB)
	Unit string

	// IOMode selects blocking or poll-driven descriptors
	IOMode Mode

	// Verbose enables debug logging and diagnostic counters in the final report
	Verbose bool

	// Counts enables the per-byte-value histogram
	Counts bool

	// BufferSize is the transfer buffer capacity in bytes
	BufferSize int

	// RateLimit caps throughput in bytes per second; zero means unlimited
	RateLimit uint64

	// MetricsAddr enables the metrics endpoint when non-empty
	MetricsAddr string

	// LogLevel controls logging verbosity (debug, info, warn, error)
	LogLevel string

	// JSONLogs switches log lines to JSON
	JSONLogs bool

	// NoColor disables colored log levels
	NoColor bool
}

// Default returns a Config populated with defaults
func Default() *Config {
	return &Config{
		Input:          StdioTarget,
		Output:         StdioTarget,
		ReportInterval: DefaultReportInterval,
		Unit:           "auto",
		IOMode:         ModePoll,
		BufferSize:     DefaultBufferSize,
		LogLevel:       "info",
	}
}

// Load creates a Config from defaults overlaid with environment variables
func Load() (*Config, error) {
	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays PIPESTATS_* environment variables onto c
func (c *Config) ApplyEnv() error {
	c.Input = getEnvOrDefault("PIPESTATS_INPUT", c.Input)
	c.Output = getEnvOrDefault("PIPESTATS_OUTPUT", c.Output)
	c.Unit = getEnvOrDefault("PIPESTATS_UNIT", c.Unit)
	c.MetricsAddr = getEnvOrDefault("PIPESTATS_METRICS_ADDR", c.MetricsAddr)
	c.LogLevel = getEnvOrDefault("PIPESTATS_LOG_LEVEL", c.LogLevel)

	if v := os.Getenv("PIPESTATS_INTERVAL"); v != "" {
		d, err := ParseInterval(v)
		if err != nil {
			return fmt.Errorf("PIPESTATS_INTERVAL: %w", err)
		}
		c.ReportInterval = d
	}
	if v := os.Getenv("PIPESTATS_BLOCKING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PIPESTATS_BLOCKING: %w", err)
		}
		c.IOMode = ModePoll
		if b {
			c.IOMode = ModeBlocking
		}
	}
	if v := os.Getenv("PIPESTATS_VERBOSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PIPESTATS_VERBOSE: %w", err)
		}
		c.Verbose = b
	}
	if v := os.Getenv("PIPESTATS_COUNTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PIPESTATS_COUNTS: %w", err)
		}
		c.Counts = b
	}
	if v := os.Getenv("PIPESTATS_BUFFER_SIZE"); v != "" {
		n, err := humanize.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("PIPESTATS_BUFFER_SIZE: %w", err)
		}
		c.BufferSize = int(n)
	}
	if v := os.Getenv("PIPESTATS_RATE_LIMIT"); v != "" {
		r, err := ParseRate(v)
		if err != nil {
			return fmt.Errorf("PIPESTATS_RATE_LIMIT: %w", err)
		}
		c.RateLimit = r
	}
	return nil
}

// Validate checks that the configuration values are usable
func (c *Config) Validate() error {
	var problems []string

	if c.ReportInterval < 0 {
		problems = append(problems, "report interval must not be negative")
	}
	if _, err := units.Parse(c.Unit); err != nil {
		problems = append(problems, err.Error())
	}
	if !c.IOMode.IsValid() {
		problems = append(problems, fmt.Sprintf("unknown I/O mode %q", c.IOMode))
	}
	if c.BufferSize <= 0 || c.BufferSize > MaxBufferSize {
		problems = append(problems, fmt.Sprintf("buffer size must be between 1 and %d bytes", MaxBufferSize))
	}
	if c.Input == "" {
		problems = append(problems, "input target is required")
	}
	if c.Output == "" {
		problems = append(problems, "output target is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return nil
}

// DisplayUnit returns the parsed display unit, falling back to auto
func (c *Config) DisplayUnit() units.Unit {
	u, err := units.Parse(c.Unit)
	if err != nil {
		return units.Human
	}
	return u
}

// ParseInterval accepts plain seconds ("2", "0.5") or a Go duration ("1500ms")
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return secondsToDuration(secs), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	return d, nil
}

// ParseRate parses a byte rate such as "10MiB", "500k" or "1.5 MB/s".
// An empty string or "0" disables the limit.
func ParseRate(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimSuffix(s, "/s"), "/sec")
	if s == "" || s == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	return n, nil
}

// getEnvOrDefault retrieves an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}
