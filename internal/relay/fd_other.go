//go:build !unix

package relay

import (
	"os"
	"time"
)

// FileEndpoint relays through an *os.File. Without poll(2) every wait reports ready.
type FileEndpoint struct {
	f        *os.File
	ownsFile bool
	closed   bool
}

// NewFileEndpoint wraps f. blocking is ignored on this platform.
func NewFileEndpoint(f *os.File, _ bool, owned bool) (*FileEndpoint, error) {
	return &FileEndpoint{f: f, ownsFile: owned}, nil
}

// Name returns the file name
func (e *FileEndpoint) Name() string { return e.f.Name() }

// WaitReadable always reports ready
func (e *FileEndpoint) WaitReadable(time.Duration) (bool, error) {
	if e.closed {
		return false, ErrClosed
	}
	return true, nil
}

// WaitWritable always reports ready
func (e *FileEndpoint) WaitWritable(time.Duration) (bool, error) {
	if e.closed {
		return false, ErrClosed
	}
	return true, nil
}

func (e *FileEndpoint) Read(p []byte) (int, error) {
	if e.closed {
		return 0, ErrClosed
	}
	return e.f.Read(p)
}

func (e *FileEndpoint) Write(p []byte) (int, error) {
	if e.closed {
		return 0, ErrClosed
	}
	return e.f.Write(p)
}

// Flush is a no-op
func (e *FileEndpoint) Flush() error { return nil }

// Close closes the file if it is owned
func (e *FileEndpoint) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.ownsFile {
		return e.f.Close()
	}
	return nil
}

var _ Source = (*FileEndpoint)(nil)
var _ Sink = (*FileEndpoint)(nil)
