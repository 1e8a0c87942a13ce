package httpclient

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader is the header carrying the request id
const RequestIDHeader = "X-Client-Request-Id"

// RequestIDPolicy tags each request with an id
type RequestIDPolicy struct {
	headerName string
	id         string
}

// NewRequestIDPolicy creates a RequestIDPolicy. An empty id generates a new
// one for every request.
func NewRequestIDPolicy(headerName, id string) *RequestIDPolicy {
	if headerName == "" {
		headerName = RequestIDHeader
	}
	return &RequestIDPolicy{headerName: headerName, id: id}
}

// Do implements Policy interface
func (p *RequestIDPolicy) Do(req *http.Request, next Next) (*http.Response, error) {
	id := p.id
	if id == "" {
		id = uuid.New().String()
	}
	req.Header.Set(p.headerName, id)
	return next(req)
}
