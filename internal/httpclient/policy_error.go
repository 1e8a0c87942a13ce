package httpclient

import (
	"fmt"
	"net/http"
)

// ErrorPolicy wraps transport errors with the request URL, minus any password
type ErrorPolicy struct{}

// NewErrorPolicy creates a new ErrorPolicy
func NewErrorPolicy() *ErrorPolicy {
	return &ErrorPolicy{}
}

// Do implements Policy interface
func (p *ErrorPolicy) Do(req *http.Request, next Next) (*http.Response, error) {
	resp, err := next(req)
	if err != nil {
		return resp, fmt.Errorf("%s %s failed: %w", req.Method, req.URL.Redacted(), err)
	}
	return resp, nil
}
