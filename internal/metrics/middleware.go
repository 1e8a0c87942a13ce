package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/julienstroheker/pipestats/internal/logging"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// RequestIDHeader is the response header carrying the per-request id
	RequestIDHeader = "X-Request-Id"

	requestIDKey contextKey = "request-id"
)

// responseWriter is a wrapper around http.ResponseWriter that captures the status code
type responseWriter struct {
	http.ResponseWriter

	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Telemetry assigns every request a fresh id, stored in the context and echoed in the response
func Telemetry(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Logger logs each request at debug level once the response is sent.
// The logger is stored in the request context for handlers.
func Logger(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logging.WithContext(r.Context(), logger)
			r = r.WithContext(ctx)
			start := time.Now()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			fields := []logging.Field{
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.String("remote_addr", r.RemoteAddr),
				logging.Int("status", rw.statusCode),
				logging.Duration("duration", time.Since(start)),
			}
			if id := GetRequestID(ctx); id != "" {
				fields = append(fields, logging.String("request_id", id))
			}
			logging.FromContext(ctx).Debug("Request served", fields...)
		})
	}
}

// RequestCounter counts served requests by path and status code
func RequestCounter(counter *prometheus.CounterVec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)
			counter.WithLabelValues(r.URL.Path, strconv.Itoa(rw.statusCode)).Inc()
		})
	}
}
