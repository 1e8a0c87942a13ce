package relay

import (
	"errors"
	"io"
	"net"
	"os"
)

var (
	// ErrSinkGone marks a write failure caused by the consumer going away
	ErrSinkGone = errors.New("output closed by peer")
	// ErrSourceGone marks a read failure caused by the producer going away mid-stream
	ErrSourceGone = errors.New("input closed unexpectedly")
	// ErrClosed is returned when using an endpoint after Close
	ErrClosed = errors.New("endpoint is closed")
)

// Op names the I/O operation an error came from
type Op string

const (
	// OpRead is a read from the source
	OpRead Op = "read"
	// OpWrite is a write to the sink
	OpWrite Op = "write"
)

// Kind is the handling class of an I/O error
type Kind int

const (
	// KindNone means no error
	KindNone Kind = iota
	// KindRetry is transient; the operation is retried on the next iteration
	KindRetry
	// KindEOF is a clean end of stream
	KindEOF
	// KindSourceGone is a broken input, handled as a soft end of stream
	KindSourceGone
	// KindSinkGone is a closed output; buffered data cannot be delivered
	KindSinkGone
	// KindFatal is anything else; it ends the relay
	KindFatal
)

// String returns the name used in log lines
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRetry:
		return "retryable"
	case KindEOF:
		return "eof"
	case KindSourceGone:
		return "source-gone"
	case KindSinkGone:
		return "sink-gone"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify decides how the relay reacts to err returned by op.
func Classify(op Op, err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, io.EOF):
		return KindEOF
	case errors.Is(err, os.ErrDeadlineExceeded), isRetryableErrno(err):
		return KindRetry
	}

	if op == OpRead {
		if errors.Is(err, ErrSourceGone) || errors.Is(err, io.ErrUnexpectedEOF) || isPeerGoneErrno(err) {
			return KindSourceGone
		}
		return KindFatal
	}

	if errors.Is(err, ErrSinkGone) || errors.Is(err, net.ErrClosed) || isPeerGoneErrno(err) {
		return KindSinkGone
	}
	return KindFatal
}

// ErrorCode returns a short symbolic code for err, such as "EPIPE".
func ErrorCode(err error) string {
	if name := errnoName(err); name != "" {
		return name
	}
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSinkGone):
		return "sink-gone"
	case errors.Is(err, ErrSourceGone):
		return "source-gone"
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "unexpected-eof"
	case errors.Is(err, os.ErrDeadlineExceeded):
		return "timeout"
	case errors.Is(err, net.ErrClosed), errors.Is(err, ErrClosed):
		return "closed"
	default:
		return "unknown"
	}
}
