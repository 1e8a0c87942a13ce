//go:build !unix

package relay

import (
	"errors"
	"os"
	"syscall"
)

// Errno extracts the numeric error code carried by err
func Errno(err error) (int, bool) {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return 0, false
	}
	return int(errno), true
}

func isRetryableErrno(error) bool { return false }

func isPeerGoneErrno(error) bool { return false }

func errnoName(error) string { return "" }

func signalName(sig os.Signal) string { return sig.String() }
