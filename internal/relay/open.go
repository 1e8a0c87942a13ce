package relay

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/julienstroheker/pipestats/internal/logging"
)

const dialTimeout = 30 * time.Second

// Stdio is the target naming standard input or standard output
const Stdio = "-"

// OpenOptions controls how targets are opened
type OpenOptions struct {
	// Blocking keeps descriptors in blocking mode
	Blocking bool

	// BufferSize bounds the chunks read by pump sources
	BufferSize int

	// RequestID is sent with websocket handshakes and HTTP requests
	RequestID string

	// Logger receives HTTP request logs at debug level (optional)
	Logger *logging.Logger

	// Stdin and Stdout replace the process streams for "-"
	Stdin  *os.File
	Stdout *os.File
}

func (o *OpenOptions) stdin() *os.File {
	if o.Stdin != nil {
		return o.Stdin
	}
	return os.Stdin
}

func (o *OpenOptions) stdout() *os.File {
	if o.Stdout != nil {
		return o.Stdout
	}
	return os.Stdout
}

// scheme splits "tcp://host:port" into "tcp" and "host:port"; plain paths have no scheme
func scheme(target string) (string, string) {
	name, rest, ok := strings.Cut(target, "://")
	if !ok {
		return "", target
	}
	return strings.ToLower(name), rest
}

// OpenSource opens target for reading: "-", a file path, tcp://host:port,
// ws(s):// or http(s)://
func OpenSource(ctx context.Context, target string, opts *OpenOptions) (Source, error) {
	if opts == nil {
		opts = &OpenOptions{}
	}
	if target == Stdio {
		return NewFileEndpoint(opts.stdin(), opts.Blocking, false)
	}

	switch s, addr := scheme(target); s {
	case "":
		f, err := os.Open(target)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		src, err := NewFileEndpoint(f, opts.Blocking, true)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		return src, nil
	case "tcp":
		conn, err := dialTCP(ctx, addr)
		if err != nil {
			return nil, err
		}
		return NewReaderPump(conn, conn, opts.BufferSize), nil
	case "ws", "wss":
		conn, err := DialWebSocket(ctx, target, opts.RequestID)
		if err != nil {
			return nil, err
		}
		return NewWebSocketSource(conn), nil
	case "http", "https":
		return OpenHTTPSource(ctx, newHTTPClient(opts), target, opts.BufferSize)
	default:
		return nil, fmt.Errorf("unsupported input scheme %q", s)
	}
}

// OpenSink opens target for writing. Files are created or truncated.
func OpenSink(ctx context.Context, target string, opts *OpenOptions) (Sink, error) {
	if opts == nil {
		opts = &OpenOptions{}
	}
	if target == Stdio {
		return NewFileEndpoint(opts.stdout(), opts.Blocking, false)
	}

	switch s, addr := scheme(target); s {
	case "":
		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open output: %w", err)
		}
		dst, err := NewFileEndpoint(f, opts.Blocking, true)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		return dst, nil
	case "tcp":
		conn, err := dialTCP(ctx, addr)
		if err != nil {
			return nil, err
		}
		return NewConnSink(conn), nil
	case "ws", "wss":
		conn, err := DialWebSocket(ctx, target, opts.RequestID)
		if err != nil {
			return nil, err
		}
		return NewWebSocketSink(conn), nil
	case "http", "https":
		return OpenHTTPSink(ctx, newHTTPClient(opts), target), nil
	default:
		return nil, fmt.Errorf("unsupported output scheme %q", s)
	}
}

func dialTCP(ctx context.Context, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return conn, nil
}
