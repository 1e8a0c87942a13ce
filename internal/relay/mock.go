package relay

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// MockSource is an in-memory Source for testing
type MockSource struct {
	mu        sync.Mutex
	data      []byte
	chunkSize int
	errs      []error
	finalErr  error
	notReady  int
	reads     int
	closed    bool

	// endWithData returns the terminal error with the last bytes
	endWithData bool
}

// NewMockSource creates a source that yields data and then io.EOF
func NewMockSource(data []byte) *MockSource {
	return &MockSource{
		data:     bytes.Clone(data),
		finalErr: io.EOF,
	}
}

// SetChunkSize caps the bytes returned by a single Read; zero means no cap
func (s *MockSource) SetChunkSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunkSize = n
}

// InjectReadErrors queues errors returned, one per Read, before any more data
func (s *MockSource) InjectReadErrors(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, errs...)
}

// FailAfter truncates the stream to n bytes and ends it with err instead of io.EOF
func (s *MockSource) FailAfter(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < len(s.data) {
		s.data = s.data[:n]
	}
	s.finalErr = err
}

// SetEndWithData makes the Read that returns the last bytes also return the
// terminal error, as io.Reader permits
func (s *MockSource) SetEndWithData(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endWithData = enabled
}

// SetNotReady makes the next n WaitReadable calls time out
func (s *MockSource) SetNotReady(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notReady = n
}

// Reads returns how many times Read was called
func (s *MockSource) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// WaitReadable reports ready unless a timeout was scripted
func (s *MockSource) WaitReadable(time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	if s.notReady > 0 {
		s.notReady--
		return false, nil
	}
	return true, nil
}

// Read returns the next chunk of data
func (s *MockSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++
	if s.closed {
		return 0, ErrClosed
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return 0, err
	}
	if len(s.data) == 0 {
		return 0, s.finalErr
	}

	limit := len(p)
	if s.chunkSize > 0 && s.chunkSize < limit {
		limit = s.chunkSize
	}
	n := copy(p[:limit], s.data)
	s.data = s.data[n:]
	if s.endWithData && len(s.data) == 0 {
		return n, s.finalErr
	}
	return n, nil
}

// Close closes the source
func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// MockSink is an in-memory Sink for testing
type MockSink struct {
	mu          sync.Mutex
	buf         bytes.Buffer
	maxPerWrite int
	errs        []error
	limit       int
	limitErr    error
	flushErr    error
	writes      int
	flushed     bool
	closed      bool

	// OnWrite, if set, is called after every Write with the bytes accepted
	OnWrite func(n int)
}

// NewMockSink creates a sink that accepts everything
func NewMockSink() *MockSink {
	return &MockSink{limit: -1}
}

// SetMaxPerWrite caps the bytes accepted by a single Write; zero means no cap
func (s *MockSink) SetMaxPerWrite(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxPerWrite = n
}

// InjectWriteErrors queues errors returned, one per Write, with nothing accepted
func (s *MockSink) InjectWriteErrors(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, errs...)
}

// FailAfter accepts n bytes in total; every later Write returns err
func (s *MockSink) FailAfter(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = n
	s.limitErr = err
}

// SetFlushError makes Flush return err
func (s *MockSink) SetFlushError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushErr = err
}

// GetWrittenData returns a copy of everything accepted so far
func (s *MockSink) GetWrittenData() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.buf.Bytes())
}

// Writes returns how many times Write was called
func (s *MockSink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Flushed reports whether Flush was called
func (s *MockSink) Flushed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushed
}

// WaitWritable reports ready until the sink is closed
func (s *MockSink) WaitWritable(time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	return true, nil
}

// Write accepts as much of p as the scripted limits allow
func (s *MockSink) Write(p []byte) (int, error) {
	n, err := s.write(p)
	if s.OnWrite != nil {
		s.OnWrite(n)
	}
	return n, err
}

func (s *MockSink) write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writes++
	if s.closed {
		return 0, ErrClosed
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return 0, err
	}

	n := len(p)
	if s.maxPerWrite > 0 && s.maxPerWrite < n {
		n = s.maxPerWrite
	}
	if s.limit >= 0 {
		room := s.limit - s.buf.Len()
		if room <= 0 {
			return 0, s.limitErr
		}
		n = min(n, room)
	}
	s.buf.Write(p[:n])
	return n, nil
}

// Flush records the call
func (s *MockSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushed = true
	return s.flushErr
}

// Close closes the sink
func (s *MockSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Source = (*MockSource)(nil)
var _ Sink = (*MockSink)(nil)
