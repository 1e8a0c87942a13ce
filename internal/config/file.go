package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config for TOML files. Nil fields were not set in the file.
type FileConfig struct {
	Input       *string  `toml:"input"`
	Output      *string  `toml:"output"`
	Interval    *float64 `toml:"interval"`
	Unit        *string  `toml:"unit"`
	Blocking    *bool    `toml:"blocking"`
	Verbose     *bool    `toml:"verbose"`
	Counts      *bool    `toml:"counts"`
	BufferSize  *int     `toml:"buffer_size"`
	RateLimit   *string  `toml:"rate_limit"`
	MetricsAddr *string  `toml:"metrics_addr"`
	LogLevel    *string  `toml:"log_level"`
	JSON        *bool    `toml:"json"`
	NoColor     *bool    `toml:"no_color"`
}

var knownKeys = map[string]bool{
	"input":        true,
	"output":       true,
	"interval":     true,
	"unit":         true,
	"blocking":     true,
	"verbose":      true,
	"counts":       true,
	"buffer_size":  true,
	"rate_limit":   true,
	"metrics_addr": true,
	"log_level":    true,
	"json":         true,
	"no_color":     true,
}

// LoadFile reads a TOML configuration file.
// It returns the parsed file and the list of keys it did not recognize.
func LoadFile(path string) (*FileConfig, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc FileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &fc, unknownKeys(data), nil
}

// unknownKeys lists top-level keys that FileConfig does not map
func unknownKeys(data []byte) []string {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil
	}

	var unknown []string
	for key := range raw {
		if !knownKeys[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// ApplyFile merges the values set in fc into c
func (c *Config) ApplyFile(fc *FileConfig) error {
	if fc == nil {
		return nil
	}
	if fc.Input != nil {
		c.Input = *fc.Input
	}
	if fc.Output != nil {
		c.Output = *fc.Output
	}
	if fc.Interval != nil {
		c.ReportInterval = secondsToDuration(*fc.Interval)
	}
	if fc.Unit != nil {
		c.Unit = *fc.Unit
	}
	if fc.Blocking != nil {
		c.IOMode = ModePoll
		if *fc.Blocking {
			c.IOMode = ModeBlocking
		}
	}
	if fc.Verbose != nil {
		c.Verbose = *fc.Verbose
	}
	if fc.Counts != nil {
		c.Counts = *fc.Counts
	}
	if fc.BufferSize != nil {
		c.BufferSize = *fc.BufferSize
	}
	if fc.RateLimit != nil {
		r, err := ParseRate(*fc.RateLimit)
		if err != nil {
			return fmt.Errorf("rate_limit: %w", err)
		}
		c.RateLimit = r
	}
	if fc.MetricsAddr != nil {
		c.MetricsAddr = *fc.MetricsAddr
	}
	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
	}
	if fc.JSON != nil {
		c.JSONLogs = *fc.JSON
	}
	if fc.NoColor != nil {
		c.NoColor = *fc.NoColor
	}
	return nil
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}
