// Package httpclient is a small HTTP client that runs every request through a
// chain of policies: error wrapping, retries, request ids, user agent and
// debug logging.
package httpclient

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/julienstroheker/pipestats/internal/logging"
)

// Client sends requests through its policy chain
type Client struct {
	httpClient *http.Client
	policies   []Policy
}

// Options contains configuration options for the HTTP client
type Options struct {
	// Timeout bounds the whole exchange including the body; zero means none.
	// Streaming transfers leave it unset.
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts; zero disables retries
	MaxRetries int

	// RetryDelay is the initial delay between retries (doubled on each attempt)
	RetryDelay time.Duration

	// RequestID is sent on every request; empty generates one per request
	RequestID string

	// UserAgent is the User-Agent header value
	UserAgent string

	// Logger is used for debug logging (optional)
	Logger *logging.Logger

	// Transport allows customizing the underlying HTTP transport
	Transport http.RoundTripper

	// AdditionalPolicies run innermost, after the built-in ones
	AdditionalPolicies []Policy
}

// DefaultOptions returns default options for the HTTP client
func DefaultOptions() *Options {
	return &Options{
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
		UserAgent:  defaultUserAgent,
	}
}

// NewClient creates a new HTTP client with the given options
func NewClient(opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}

	httpClient := &http.Client{
		Timeout: opts.Timeout,
	}
	if opts.Transport != nil {
		httpClient.Transport = opts.Transport
	}

	// Outermost first. Logging is last so it sees the final headers.
	policies := []Policy{NewErrorPolicy()}
	if opts.MaxRetries > 0 {
		policies = append(policies, NewRetryPolicy(&RetryOptions{
			MaxRetries: opts.MaxRetries,
			RetryDelay: opts.RetryDelay,
			Logger:     opts.Logger,
		}))
	}
	policies = append(policies, NewRequestIDPolicy(RequestIDHeader, opts.RequestID))
	if opts.UserAgent != "" {
		policies = append(policies, NewUserAgentPolicy(opts.UserAgent))
	}
	if opts.Logger != nil {
		policies = append(policies, NewLoggingPolicy(opts.Logger, &LoggingOptions{
			LogHeaders: true,
		}))
	}
	policies = append(policies, opts.AdditionalPolicies...)

	return &Client{
		httpClient: httpClient,
		policies:   policies,
	}
}

// Do executes an HTTP request through the policy chain
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	next := Next(c.httpClient.Do)
	for i := len(c.policies) - 1; i >= 0; i-- {
		policy, inner := c.policies[i], next
		next = func(r *http.Request) (*http.Response, error) {
			return policy.Do(r, inner)
		}
	}
	return next(req)
}

// Get is a convenience method for GET requests
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Post sends body with the given content type. A body that is not a
// bytes.Buffer, bytes.Reader or strings.Reader is streamed and never retried.
func (c *Client) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(req)
}
