//go:build unix

package relay

import (
	"errors"
	"os"
	"slices"
	"syscall"

	"golang.org/x/sys/unix"
)

var (
	retryableErrnos = []unix.Errno{unix.EINTR, unix.EAGAIN, unix.EWOULDBLOCK, unix.EBUSY, unix.EDEADLK, unix.ENOLCK}
	peerGoneErrnos  = []unix.Errno{unix.EPIPE, unix.ECONNRESET}
)

// Errno extracts the numeric error code carried by err
func Errno(err error) (int, bool) {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return 0, false
	}
	return int(errno), true
}

func isRetryableErrno(err error) bool {
	var errno unix.Errno
	return errors.As(err, &errno) && slices.Contains(retryableErrnos, errno)
}

func isPeerGoneErrno(err error) bool {
	var errno unix.Errno
	return errors.As(err, &errno) && slices.Contains(peerGoneErrnos, errno)
}

func errnoName(err error) string {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return ""
	}
	return unix.ErrnoName(errno)
}

// signalName returns the conventional name of sig, such as "SIGINT"
func signalName(sig os.Signal) string {
	if s, ok := sig.(syscall.Signal); ok {
		if name := unix.SignalName(s); name != "" {
			return name
		}
	}
	return sig.String()
}
