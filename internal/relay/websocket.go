package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/julienstroheker/pipestats/internal/httpclient"
)

const (
	// RequestIDHeader carries the run id on the websocket handshake
	RequestIDHeader = httpclient.RequestIDHeader

	handshakeTimeout = 30 * time.Second
	closeGracePeriod = time.Second
)

// DialWebSocket opens a websocket connection to url, tagging the handshake with requestID.
func DialWebSocket(ctx context.Context, url, requestID string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	headers := http.Header{}
	if requestID != "" {
		headers.Set(RequestIDHeader, requestID)
	}

	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s (status %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	return conn, nil
}

// NewWebSocketSource relays the payload of every data message received on conn.
// A normal close frame ends the stream; any other failure is a broken input.
func NewWebSocketSource(conn *websocket.Conn) *PumpSource {
	return NewPumpSource(func() ([]byte, error) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, classifyWebSocketRead(err)
		}
		return data, nil
	}, &webSocketCloser{conn: conn})
}

func classifyWebSocketRead(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return io.EOF
	}
	return fmt.Errorf("%w: %v", ErrSourceGone, err)
}

// WebSocketSink sends every write as one binary message.
// gorilla connections are unusable after a write timeout, so writes carry no deadline.
type WebSocketSink struct {
	conn   *webSocketCloser
	closed bool
}

// NewWebSocketSink wraps conn
func NewWebSocketSink(conn *websocket.Conn) *WebSocketSink {
	return &WebSocketSink{conn: &webSocketCloser{conn: conn}}
}

// WaitWritable always reports ready
func (s *WebSocketSink) WaitWritable(time.Duration) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	return true, nil
}

// Write sends p as a single binary message
func (s *WebSocketSink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if err := s.conn.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) || errors.Is(err, websocket.ErrCloseSent) {
			return 0, fmt.Errorf("%w: %v", ErrSinkGone, err)
		}
		return 0, err
	}
	return len(p), nil
}

// Flush is a no-op; every write is a complete message
func (s *WebSocketSink) Flush() error {
	return nil
}

// Close sends a close frame and closes the connection
func (s *WebSocketSink) Close() error {
	s.closed = true
	return s.conn.Close()
}

// webSocketCloser performs the closing handshake at most once
type webSocketCloser struct {
	conn *websocket.Conn
	once sync.Once
	err  error
}

func (c *webSocketCloser) Close() error {
	c.once.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		c.err = c.conn.Close()
	})
	return c.err
}

var _ Sink = (*WebSocketSink)(nil)
