package httpclient

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/julienstroheker/pipestats/internal/logging"
)

// defaultHeaderFilters are redacted unless LoggingOptions names its own list
var defaultHeaderFilters = []string{"Authorization", "Proxy-Authorization", "Cookie", "Set-Cookie"}

// LoggingPolicy logs requests and responses in debug mode.
// Bodies are streams and are never logged.
type LoggingPolicy struct {
	logger        *logging.Logger
	logHeaders    bool
	headerFilters []string
}

// LoggingOptions contains configuration for LoggingPolicy
type LoggingOptions struct {
	// LogHeaders enables logging of request/response headers
	LogHeaders bool

	// HeaderFilters is a list of header names to redact values for
	HeaderFilters []string
}

// NewLoggingPolicy creates a new LoggingPolicy
func NewLoggingPolicy(logger *logging.Logger, opts *LoggingOptions) *LoggingPolicy {
	if opts == nil {
		opts = &LoggingOptions{}
	}

	filters := opts.HeaderFilters
	if filters == nil {
		filters = defaultHeaderFilters
	}

	return &LoggingPolicy{
		logger:        logger,
		logHeaders:    opts.LogHeaders,
		headerFilters: filters,
	}
}

// Do implements Policy interface
func (p *LoggingPolicy) Do(req *http.Request, next Next) (*http.Response, error) {
	if p.logger == nil {
		return next(req)
	}

	fields := []logging.Field{
		logging.String("method", req.Method),
		logging.String("url", req.URL.Redacted()),
	}
	if p.logHeaders && len(req.Header) > 0 {
		fields = append(fields, p.formatHeaders("request_headers", req.Header))
	}
	p.logger.Debug("HTTP Request", fields...)

	start := time.Now()
	resp, err := next(req)
	duration := time.Since(start)

	if err != nil {
		p.logger.Debug("HTTP Request failed",
			logging.String("method", req.Method),
			logging.String("url", req.URL.Redacted()),
			logging.Error(err),
			logging.Int("duration_ms", int(duration.Milliseconds())))
		return resp, err
	}

	fields = []logging.Field{
		logging.String("method", req.Method),
		logging.String("url", req.URL.Redacted()),
		logging.Int("status", resp.StatusCode),
		logging.Int("duration_ms", int(duration.Milliseconds())),
	}
	if p.logHeaders && len(resp.Header) > 0 {
		fields = append(fields, p.formatHeaders("response_headers", resp.Header))
	}
	p.logger.Debug("HTTP Response", fields...)

	return resp, nil
}

// formatHeaders renders headers sorted by name, applying redaction filters
func (p *LoggingPolicy) formatHeaders(key string, headers http.Header) logging.Field {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	slices.Sort(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		value := strings.Join(headers[name], ", ")
		if slices.ContainsFunc(p.headerFilters, func(f string) bool { return strings.EqualFold(name, f) }) {
			value = "[REDACTED]"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", name, value))
	}
	return logging.String(key, strings.Join(parts, "; "))
}
