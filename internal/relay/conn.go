package relay

import (
	"net"
	"time"
)

// ConnSink writes to a stream connection. Writes carry a deadline equal to the
// last wait timeout, so a stalled peer shows up as a retryable partial write.
type ConnSink struct {
	conn    net.Conn
	timeout time.Duration
}

// NewConnSink wraps conn
func NewConnSink(conn net.Conn) *ConnSink {
	return &ConnSink{conn: conn, timeout: -1}
}

// WaitWritable records the timeout for the next Write; connections have no readiness check
func (s *ConnSink) WaitWritable(timeout time.Duration) (bool, error) {
	s.timeout = timeout
	return true, nil
}

func (s *ConnSink) Write(p []byte) (int, error) {
	var deadline time.Time
	if s.timeout >= 0 {
		deadline = time.Now().Add(s.timeout)
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return 0, err
	}
	return s.conn.Write(p)
}

// Flush half-closes TCP connections so the peer sees end of stream
func (s *ConnSink) Flush() error {
	if tc, ok := s.conn.(*net.TCPConn); ok {
		return tc.CloseWrite()
	}
	return nil
}

// Close closes the connection
func (s *ConnSink) Close() error {
	return s.conn.Close()
}

var _ Sink = (*ConnSink)(nil)
