package cmd

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/julienstroheker/pipestats/internal/config"
	"github.com/julienstroheker/pipestats/internal/logging"
	"github.com/julienstroheker/pipestats/internal/metrics"
	"github.com/julienstroheker/pipestats/internal/relay"
	"github.com/julienstroheker/pipestats/internal/report"
	"github.com/julienstroheker/pipestats/internal/shutdown"
	"github.com/julienstroheker/pipestats/internal/stats"
)

const metricsShutdownTimeout = 5 * time.Second

// run relays cfg.Input to cfg.Output and returns the process exit status.
// Reports go to diag. An error means the relay never started.
func run(ctx context.Context, cfg *config.Config, logger *logging.Logger, diag io.Writer) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	runID := uuid.New().String()
	logger = logger.With(logging.String("run_id", runID))
	ctx = logging.WithContext(ctx, logger)

	ctrl := shutdown.New(nil)
	ctrl.Start(ctx)
	defer ctrl.Stop()

	openOpts := &relay.OpenOptions{
		Blocking:   cfg.IOMode.Blocking(),
		BufferSize: cfg.BufferSize,
		RequestID:  runID,
		Logger:     logger,
	}
	src, err := relay.OpenSource(ctx, cfg.Input, openOpts)
	if err != nil {
		return 0, err
	}
	defer closeEndpoint(logger, "input", src)

	dst, err := relay.OpenSink(ctx, cfg.Output, openOpts)
	if err != nil {
		return 0, err
	}
	defer closeEndpoint(logger, "output", dst)

	var observer relay.Observer
	if cfg.MetricsAddr != "" {
		exporter := metrics.NewExporter()
		server, err := metrics.NewServer(&metrics.Options{
			Addr:     cfg.MetricsAddr,
			Exporter: exporter,
			Logger:   logger,
		})
		if err != nil {
			return 0, err
		}
		if err := server.Start(); err != nil {
			return 0, err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(sctx); err != nil {
				logger.Warn("Metrics server shutdown failed", logging.Error(err))
			}
		}()
		observer = exporter
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := int(min(cfg.RateLimit, uint64(cfg.BufferSize)))
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(burst, 1))
	}

	blocking := cfg.IOMode.Blocking()
	engine, err := relay.NewEngine(&relay.Options{
		Source: src,
		Sink:   dst,
		Ledger: stats.New(time.Now(), cfg.Counts),
		Reporter: report.New(&report.Options{
			Output:   diag,
			Interval: cfg.ReportInterval,
			Unit:     cfg.DisplayUnit(),
			Verbose:  cfg.Verbose,
		}),
		Shutdown:    ctrl,
		Observer:    observer,
		Limiter:     limiter,
		BufferSize:  cfg.BufferSize,
		PollTimeout: relay.PollTimeout(cfg.ReportInterval, blocking),
		Logger:      logger,
	})
	if err != nil {
		return 0, err
	}

	logger.Debug("Relay starting",
		logging.String("input", cfg.Input),
		logging.String("output", cfg.Output),
		logging.Duration("interval", cfg.ReportInterval),
		logging.String("mode", cfg.IOMode.String()),
		logging.Int("buffer_size", cfg.BufferSize),
		logging.Uint64("rate_limit", cfg.RateLimit),
	)

	res := engine.Run(ctx)

	logger.Debug("Relay finished",
		logging.String("status", res.Status()),
		logging.Int("exit_code", res.ExitCode),
	)
	return res.ExitCode, nil
}

func closeEndpoint(logger *logging.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn("Failed to close "+name, logging.Error(err))
	}
}
