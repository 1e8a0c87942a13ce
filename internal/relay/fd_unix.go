//go:build unix

package relay

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// FileEndpoint relays through a file descriptor with raw reads and writes.
// Readiness comes from poll(2) so the loop never blocks past its timeout.
type FileEndpoint struct {
	f    *os.File
	fd   int
	name string

	// origFlags is set when the descriptor was switched to non-blocking mode
	origFlags int
	restore   bool
	ownsFile  bool
	closed    bool
}

// NewFileEndpoint wraps f. Unless blocking is set, the descriptor is switched to
// non-blocking mode until Close. If owned, Close also closes f.
func NewFileEndpoint(f *os.File, blocking, owned bool) (*FileEndpoint, error) {
	raw, err := f.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("failed to access descriptor of %s: %w", f.Name(), err)
	}

	fd := -1
	if err := raw.Control(func(s uintptr) { fd = int(s) }); err != nil {
		return nil, fmt.Errorf("failed to access descriptor of %s: %w", f.Name(), err)
	}

	e := &FileEndpoint{f: f, fd: fd, name: f.Name(), ownsFile: owned}
	if blocking {
		return e, nil
	}

	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read flags of %s: %w", e.name, err)
	}
	if flags&unix.O_NONBLOCK == 0 {
		if err := unix.SetNonblock(fd, true); err != nil {
			return nil, fmt.Errorf("failed to set non-blocking mode on %s: %w", e.name, err)
		}
		e.origFlags = flags
		e.restore = true
	}
	return e, nil
}

// Name returns the file name
func (e *FileEndpoint) Name() string {
	return e.name
}

// WaitReadable polls for input
func (e *FileEndpoint) WaitReadable(timeout time.Duration) (bool, error) {
	return e.wait(unix.POLLIN, timeout)
}

// WaitWritable polls for output space
func (e *FileEndpoint) WaitWritable(timeout time.Duration) (bool, error) {
	return e.wait(unix.POLLOUT, timeout)
}

func (e *FileEndpoint) wait(events int16, timeout time.Duration) (bool, error) {
	if e.closed {
		return false, ErrClosed
	}

	ms := -1
	if timeout >= 0 {
		ms = int(timeout.Milliseconds())
		if ms == 0 && timeout > 0 {
			ms = 1
		}
	}

	fds := []unix.PollFd{{Fd: int32(e.fd), Events: events}}
	n, err := unix.Poll(fds, ms)
	if err != nil {
		return false, os.NewSyscallError("poll", err)
	}
	if n == 0 {
		return false, nil
	}
	if fds[0].Revents&unix.POLLNVAL != 0 {
		return false, os.NewSyscallError("poll", unix.EBADF)
	}
	// POLLHUP and POLLERR count as ready: the next read or write reports the condition
	return true, nil
}

// Read performs one read(2). Zero bytes means end of stream.
func (e *FileEndpoint) Read(p []byte) (int, error) {
	if e.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := unix.Read(e.fd, p)
	if err != nil {
		return 0, os.NewSyscallError("read", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write performs one write(2) and may accept fewer bytes than offered.
func (e *FileEndpoint) Write(p []byte) (int, error) {
	if e.closed {
		return 0, ErrClosed
	}
	n, err := unix.Write(e.fd, p)
	if n < 0 {
		n = 0
	}
	if err != nil {
		return n, os.NewSyscallError("write", err)
	}
	return n, nil
}

// Flush is a no-op; writes go straight to the descriptor
func (e *FileEndpoint) Flush() error {
	return nil
}

// Close restores the descriptor flags and closes the file if it is owned
func (e *FileEndpoint) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	var err error
	if e.restore {
		if _, ferr := unix.FcntlInt(uintptr(e.fd), unix.F_SETFL, e.origFlags); ferr != nil {
			err = fmt.Errorf("failed to restore flags of %s: %w", e.name, ferr)
		}
	}
	if e.ownsFile {
		if cerr := e.f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

var _ Source = (*FileEndpoint)(nil)
var _ Sink = (*FileEndpoint)(nil)
