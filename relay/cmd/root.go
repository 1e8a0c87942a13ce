package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/julienstroheker/pipestats/internal/config"
	"github.com/julienstroheker/pipestats/internal/logging"
)

// ExitError carries a non-zero exit status out of the command tree
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// rootFlags holds the raw command-line values; only flags that were set override the config
type rootFlags struct {
	configPath  string
	input       string
	output      string
	interval    string
	unit        string
	blocking    bool
	verbose     bool
	counts      bool
	bufferSize  string
	rateLimit   string
	metricsAddr string
	logLevel    string
	json        bool
	noColor     bool
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	f := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "pipestats",
		Short: "Relay a byte stream and report its throughput",
		Long: `pipestats - copy input to output unchanged while reporting throughput

Data flows from --input to --output (standard input and output by default).
Progress lines and the final summary go to standard error.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, warnings, err := loadConfig(cmd.Flags(), f)
			if err != nil {
				return err
			}

			logger := newLogger(cfg, cmd.ErrOrStderr())
			for _, w := range warnings {
				logger.Warn(w)
			}

			code, err := run(cmd.Context(), cfg, logger, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if code != 0 {
				return &ExitError{Code: code}
			}
			return nil
		},
	}

	// Disable default completion and help commands
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	bindFlags(cmd.Flags(), f)

	return cmd
}

func bindFlags(flags *pflag.FlagSet, f *rootFlags) {
	flags.StringVar(&f.configPath, "config", "", "TOML configuration file (env PIPESTATS_CONFIG)")
	flags.StringVar(&f.input, "input", config.StdioTarget, "Input: -, a file, tcp://host:port, ws(s)://... or http(s)://...")
	flags.StringVar(&f.output, "output", config.StdioTarget, "Output: -, a file, tcp://host:port, ws(s)://... or http(s)://...")
	flags.StringVarP(&f.interval, "interval", "i", "2", "Seconds between progress reports, 0 disables them")
	flags.StringVarP(&f.unit, "unit", "u", "auto", "Display unit: auto, B, KB, MB or GB")
	flags.BoolVarP(&f.blocking, "blocking", "b", false, "Keep descriptors in blocking mode")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "Enable debug logging and diagnostic counters")
	flags.BoolVarP(&f.counts, "counts", "c", false, "Count occurrences of every byte value")
	flags.StringVar(&f.bufferSize, "buffer-size", humanize.IBytes(config.DefaultBufferSize), "Transfer buffer size")
	flags.StringVar(&f.rateLimit, "rate-limit", "", "Throughput cap such as 10MiB/s (empty for none)")
	flags.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address")
	flags.StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flags.BoolVar(&f.json, "json", false, "Output logs in JSON format")
	flags.BoolVar(&f.noColor, "no-color", false, "Disable colored log levels")
}

// loadConfig layers defaults, the config file, the environment and set flags, in that order.
// It returns warnings to log once the logger exists.
func loadConfig(flags *pflag.FlagSet, f *rootFlags) (*config.Config, []string, error) {
	cfg := config.Default()
	var warnings []string

	path := f.configPath
	if path == "" {
		path = os.Getenv("PIPESTATS_CONFIG")
	}
	if path != "" {
		fc, unknown, err := config.LoadFile(path)
		if err != nil {
			return nil, nil, err
		}
		for _, key := range unknown {
			warnings = append(warnings, fmt.Sprintf("Ignoring unknown key %q in %s", key, path))
		}
		if err := cfg.ApplyFile(fc); err != nil {
			return nil, nil, fmt.Errorf("invalid config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, nil, err
	}
	if err := applyFlags(flags, f, cfg); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, warnings, nil
}

func applyFlags(flags *pflag.FlagSet, f *rootFlags, cfg *config.Config) error {
	if flags.Changed("input") {
		cfg.Input = f.input
	}
	if flags.Changed("output") {
		cfg.Output = f.output
	}
	if flags.Changed("interval") {
		d, err := config.ParseInterval(f.interval)
		if err != nil {
			return fmt.Errorf("--interval: %w", err)
		}
		cfg.ReportInterval = d
	}
	if flags.Changed("unit") {
		cfg.Unit = f.unit
	}
	if flags.Changed("blocking") {
		cfg.IOMode = config.ModePoll
		if f.blocking {
			cfg.IOMode = config.ModeBlocking
		}
	}
	if flags.Changed("verbose") {
		cfg.Verbose = f.verbose
	}
	if flags.Changed("counts") {
		cfg.Counts = f.counts
	}
	if flags.Changed("buffer-size") {
		n, err := humanize.ParseBytes(f.bufferSize)
		if err != nil {
			return fmt.Errorf("--buffer-size: %w", err)
		}
		cfg.BufferSize = int(n)
	}
	if flags.Changed("rate-limit") {
		r, err := config.ParseRate(f.rateLimit)
		if err != nil {
			return fmt.Errorf("--rate-limit: %w", err)
		}
		cfg.RateLimit = r
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if flags.Changed("json") {
		cfg.JSONLogs = f.json
	}
	if flags.Changed("no-color") {
		cfg.NoColor = f.noColor
	}
	return nil
}

// newLogger builds the diagnostic logger; --verbose forces debug level
func newLogger(cfg *config.Config, w io.Writer) *logging.Logger {
	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.Verbose {
		level = logging.DebugLevel
	}

	logger := logging.NewWithOutput(level, w)
	if cfg.JSONLogs {
		logger.SetFormat(logging.FormatJSON)
	}
	if cfg.NoColor {
		logger.SetColor(false)
	}
	return logger
}

// Execute runs the root command and exits with its status
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "pipestats:", err)
		os.Exit(1)
	}
}
