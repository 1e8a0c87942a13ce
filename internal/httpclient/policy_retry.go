package httpclient

import (
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/julienstroheker/pipestats/internal/logging"
)

// maxDrain bounds how much of a rejected response is read before retrying
const maxDrain = 64 << 10

// RetryPolicy retries failed requests with exponential backoff.
// Requests whose body cannot be replayed are sent once.
type RetryPolicy struct {
	maxRetries       int
	retryDelay       time.Duration
	retryStatusCodes []int
	logger           *logging.Logger
}

// RetryOptions contains configuration for RetryPolicy
type RetryOptions struct {
	// MaxRetries is the maximum number of retry attempts (default: 3)
	MaxRetries int

	// RetryDelay is the initial delay between retries (default: 1s)
	RetryDelay time.Duration

	// RetryStatusCodes defines which HTTP status codes should trigger a retry.
	// Default: 429, 500, 502, 503 and 504.
	RetryStatusCodes []int

	// Logger for debug logging (optional)
	Logger *logging.Logger
}

// NewRetryPolicy creates a new RetryPolicy
func NewRetryPolicy(opts *RetryOptions) *RetryPolicy {
	if opts == nil {
		opts = &RetryOptions{}
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	retryStatusCodes := opts.RetryStatusCodes
	if len(retryStatusCodes) == 0 {
		retryStatusCodes = []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		}
	}

	return &RetryPolicy{
		maxRetries:       maxRetries,
		retryDelay:       retryDelay,
		retryStatusCodes: retryStatusCodes,
		logger:           opts.Logger,
	}
}

// Do implements Policy interface
func (p *RetryPolicy) Do(req *http.Request, next Next) (*http.Response, error) {
	if !replayable(req) {
		return next(req)
	}

	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req.Body = body
		}

		resp, err := next(req)
		if err == nil && !p.shouldRetry(resp) {
			return resp, nil
		}
		if attempt == p.maxRetries {
			return resp, err
		}
		discard(resp)

		if p.logger != nil {
			fields := []logging.Field{
				logging.Int("attempt", attempt+1),
				logging.Int("max_retries", p.maxRetries),
				logging.String("url", req.URL.Redacted()),
			}
			if err != nil {
				fields = append(fields, logging.Error(err))
			} else {
				fields = append(fields, logging.Int("status", resp.StatusCode))
			}
			p.logger.Debug("Retrying request", fields...)
		}

		timer := time.NewTimer(p.retryDelay << attempt)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

// shouldRetry determines if a response should be retried
func (p *RetryPolicy) shouldRetry(resp *http.Response) bool {
	if resp == nil {
		return true
	}
	return slices.Contains(p.retryStatusCodes, resp.StatusCode)
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// discard drains and closes a response that is about to be replaced
func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, resp.Body, maxDrain)
	_ = resp.Body.Close()
}
