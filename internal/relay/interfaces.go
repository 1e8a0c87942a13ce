package relay

import (
	"io"
	"time"

	"github.com/julienstroheker/pipestats/internal/stats"
)

// Source is the input side of a relay
type Source interface {
	// Read pulls at most len(p) bytes. It returns io.EOF once the stream is exhausted.
	io.Reader

	// WaitReadable blocks until a Read would make progress or timeout elapses.
	// A negative timeout waits indefinitely.
	WaitReadable(timeout time.Duration) (bool, error)

	// Close releases the source
	io.Closer
}

// Prefetcher is a Source that may hold input already taken from its producer.
// The engine drains it on shutdown and counts it as lost when the sink fails.
type Prefetcher interface {
	// Held waits up to timeout for a pull already under way and returns how
	// many bytes are held. It never starts a new pull.
	Held(timeout time.Duration) int

	// Discard drops the held bytes and returns them
	Discard() []byte
}

// Sink is the output side of a relay
type Sink interface {
	// Write may accept fewer bytes than offered
	io.Writer

	// WaitWritable blocks until a Write would make progress or timeout elapses.
	// A negative timeout waits indefinitely.
	WaitWritable(timeout time.Duration) (bool, error)

	// Flush pushes any data held by the sink to its destination
	Flush() error

	// Close releases the sink
	io.Closer
}

// Stopper exposes a cooperative shutdown request
type Stopper interface {
	// Requested reports whether the relay should stop pulling input
	Requested() bool

	// ExitCode is the status to exit with after a requested stop
	ExitCode() int
}

// Observer receives the ledger after every loop iteration, on the loop goroutine.
// Implementations must copy what they need; the ledger keeps changing.
type Observer interface {
	Observe(l *stats.Ledger)
}
