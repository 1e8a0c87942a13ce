package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/julienstroheker/pipestats/internal/httpclient"
)

const (
	uploadContentType = "application/octet-stream"

	// maxDrain bounds how much of a response body is read before closing it
	maxDrain = 64 << 10
)

func newHTTPClient(opts *OpenOptions) *httpclient.Client {
	o := httpclient.DefaultOptions()
	o.RequestID = opts.RequestID
	o.Logger = opts.Logger
	return httpclient.NewClient(o)
}

// OpenHTTPSource fetches url and pumps the response body.
// The request is retried on 429 and 5xx; any other non-2xx status is an error.
func OpenHTTPSource(ctx context.Context, client *httpclient.Client, url string, size int) (*PumpSource, error) {
	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		drain(resp)
		return nil, fmt.Errorf("failed to open input: %s returned %s", url, resp.Status)
	}
	return NewReaderPump(resp.Body, resp.Body, size), nil
}

// HTTPSink streams everything written to it as the body of a single POST.
// A writer goroutine feeds the request body, so a stalled server shows up as a
// timed-out Write instead of blocking the caller. After a timed-out Write the
// next Write must offer the same bytes; it reports the progress of the
// earlier one.
type HTTPSink struct {
	url     string
	pw      *io.PipeWriter
	reqs    chan []byte
	results chan writeResult
	done    chan struct{}
	err     error

	// inflight is set while a handed-over write has not reported back
	inflight bool
	finished *writeResult
	timeout  time.Duration
	closed   bool
}

type writeResult struct {
	n   int
	err error
}

// OpenHTTPSink starts a chunked POST to url. The upload runs until Flush or Close.
func OpenHTTPSink(ctx context.Context, client *httpclient.Client, url string) *HTTPSink {
	pr, pw := io.Pipe()
	s := &HTTPSink{
		url:     url,
		pw:      pw,
		reqs:    make(chan []byte, 1),
		results: make(chan writeResult, 1),
		done:    make(chan struct{}),
		timeout: -1,
	}
	go s.upload(ctx, client, pr)
	go s.feed()
	return s
}

func (s *HTTPSink) upload(ctx context.Context, client *httpclient.Client, pr *io.PipeReader) {
	defer close(s.done)

	resp, err := client.Post(ctx, s.url, uploadContentType, pr)
	if err == nil {
		drain(resp)
		if resp.StatusCode/100 != 2 {
			err = fmt.Errorf("%s rejected upload: %s", s.url, resp.Status)
		}
	}
	if err != nil {
		s.err = fmt.Errorf("%w: %v", ErrSinkGone, err)
	}

	// Pending and later writes fail instead of blocking forever
	_ = pr.CloseWithError(s.failure())
}

// feed copies handed-over chunks into the request body
func (s *HTTPSink) feed() {
	for p := range s.reqs {
		n, err := s.pw.Write(p)
		s.results <- writeResult{n: n, err: err}
	}
}

// failure is the error reported for writes once the upload has ended
func (s *HTTPSink) failure() error {
	if s.err != nil {
		return s.err
	}
	return fmt.Errorf("%w: %s ended the upload early", ErrSinkGone, s.url)
}

// collect waits up to timeout for the write in flight; zero only polls
func (s *HTTPSink) collect(timeout time.Duration) bool {
	if !s.inflight {
		return true
	}

	var expired <-chan time.Time
	switch {
	case timeout == 0:
		closed := make(chan time.Time)
		close(closed)
		expired = closed
	case timeout > 0:
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case r := <-s.results:
		s.inflight = false
		s.finished = &r
		return true
	case <-expired:
		return false
	}
}

// WaitWritable waits for the previous write to be taken by the transport.
// The timeout also bounds the next Write.
func (s *HTTPSink) WaitWritable(timeout time.Duration) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	s.timeout = timeout
	return s.collect(timeout), nil
}

func (s *HTTPSink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if !s.collect(0) {
		return 0, os.ErrDeadlineExceeded
	}
	if s.finished == nil {
		s.reqs <- bytes.Clone(p)
		s.inflight = true
		if !s.collect(s.timeout) {
			return 0, os.ErrDeadlineExceeded
		}
	}

	r := *s.finished
	s.finished = nil
	if r.err != nil {
		// The read side only closes when the upload is over
		<-s.done
		return r.n, s.failure()
	}
	return r.n, nil
}

// Flush ends the request body and waits for a 2xx response
func (s *HTTPSink) Flush() error {
	if s.closed {
		return ErrClosed
	}
	s.collect(-1)
	_ = s.pw.Close()
	<-s.done
	return s.err
}

// Close aborts an unfinished upload
func (s *HTTPSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.pw.CloseWithError(ErrClosed)
	close(s.reqs)
	<-s.done
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	_ = resp.Body.Close()
}

var _ Sink = (*HTTPSink)(nil)
