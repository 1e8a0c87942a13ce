//go:build unix

package shutdown

import (
	"os"

	"golang.org/x/sys/unix"
)

// Signals lists the signals that request a graceful drain
var Signals = []os.Signal{
	unix.SIGHUP,
	unix.SIGINT,
	unix.SIGQUIT,
	unix.SIGABRT,
	unix.SIGPIPE,
	unix.SIGTERM,
}
