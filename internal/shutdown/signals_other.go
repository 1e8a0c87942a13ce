//go:build !unix

package shutdown

import "os"

// Signals lists the signals that request a graceful drain
var Signals = []os.Signal{os.Interrupt}
