// Package shutdown turns termination signals into a cooperative stop flag.
//
// The signal watcher does nothing but set the flag. All interpretation
// (draining, reporting, choosing the exit status) happens on the relay loop,
// which checks Requested at the top of every iteration. A second signal while
// a shutdown is already pending terminates the process immediately.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// Controller holds the process-wide shutdown flag
type Controller struct {
	requested atomic.Bool
	mu        sync.Mutex
	sig       os.Signal
	signals   chan os.Signal
	exit      func(code int)
	stopOnce  sync.Once
	done      chan struct{}
}

// Options contains configuration for a Controller
type Options struct {
	// Exit is called with the exit code on a second signal (default os.Exit)
	Exit func(code int)
}

// New creates a Controller. Call Start to begin watching signals.
func New(opts *Options) *Controller {
	if opts == nil {
		opts = &Options{}
	}
	exit := opts.Exit
	if exit == nil {
		exit = os.Exit
	}
	return &Controller{
		signals: make(chan os.Signal, 2),
		exit:    exit,
		done:    make(chan struct{}),
	}
}

// Start subscribes to the termination signals and watches them until ctx
// is done or Stop is called.
func (c *Controller) Start(ctx context.Context) {
	signal.Notify(c.signals, Signals...)
	go c.watch(ctx)
}

func (c *Controller) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case sig := <-c.signals:
			c.Trigger(sig)
		}
	}
}

// Trigger records sig as a shutdown request. The first call sets the flag;
// any later call forces immediate termination.
func (c *Controller) Trigger(sig os.Signal) {
	c.mu.Lock()
	first := !c.requested.Load()
	if first {
		// the signal is visible before the flag
		c.sig = sig
		c.requested.Store(true)
	}
	c.mu.Unlock()

	if !first {
		c.exit(ExitCode(sig))
	}
}

// Requested reports whether a shutdown has been requested
func (c *Controller) Requested() bool {
	return c.requested.Load()
}

// Signal returns the signal that requested the shutdown, or nil
func (c *Controller) Signal() os.Signal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sig
}

// ExitCode returns the conventional exit status for the recorded signal
func (c *Controller) ExitCode() int {
	return ExitCode(c.Signal())
}

// Stop unsubscribes from signals and ends the watcher
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		signal.Stop(c.signals)
		close(c.done)
	})
}

// ExitCode maps a signal to 128+signo, or 130 when the number is unknown.
func ExitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok && s > 0 {
		return 128 + int(s)
	}
	return 130
}
