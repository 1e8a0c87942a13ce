package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/julienstroheker/pipestats/internal/logging"
)

// Server serves /healthz and /metrics
type Server struct {
	server   *http.Server
	addr     string
	listener net.Listener
	logger   *logging.Logger
	done     chan error
}

// Options configures the metrics server
type Options struct {
	// Addr is the listen address, such as ":9100" or "127.0.0.1:0"
	Addr string

	// Exporter supplies the relay counters (required)
	Exporter *Exporter

	// Logger receives request logs
	Logger *logging.Logger
}

// NewServer creates a metrics server with its own registry
func NewServer(opts *Options) (*Server, error) {
	if opts == nil || opts.Exporter == nil {
		return nil, errors.New("exporter is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.FromContext(context.Background())
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(opts.Exporter); err != nil {
		return nil, fmt.Errorf("failed to register exporter: %w", err)
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Requests served by the metrics endpoint.",
	}, []string{"path", "code"})
	if err := reg.Register(requests); err != nil {
		return nil, fmt.Errorf("failed to register request counter: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", HealthHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	var handler http.Handler = mux
	handler = RequestCounter(requests)(handler)
	handler = Logger(logger)(handler)
	handler = Telemetry(handler)

	return &Server{
		server: &http.Server{
			Addr:              opts.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		addr:   opts.Addr,
		logger: logger,
		done:   make(chan error, 1),
	}, nil
}

// Start binds the listen address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.logger.Info("Metrics server listening", logging.String("addr", ln.Addr().String()))

	go func() {
		err := s.server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			s.logger.Error("Metrics server failed", logging.Error(err))
		}
		s.done <- err
	}()
	return nil
}

// Addr returns the bound address once started, or the configured address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	if s.listener == nil {
		return nil
	}
	select {
	case err := <-s.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close immediately closes the server
func (s *Server) Close() error {
	return s.server.Close()
}
