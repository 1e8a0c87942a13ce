package relay

import (
	"io"
	"sync"
	"time"
)

// chunk is one unit handed from the pump goroutine to the loop
type chunk struct {
	data []byte
	err  error
}

// PumpSource turns a blocking producer into a Source.
// One goroutine owns the producer and pulls from it only when the loop asks
// for data, so at most one chunk is ever held ahead of Read. Readiness is a
// channel receive with a timeout.
type PumpSource struct {
	want    chan struct{}
	ch      chan chunk
	done    chan struct{}
	closer  io.Closer
	asked   bool
	pending []byte
	err     error

	closeOnce sync.Once
}

// NewPumpSource starts a goroutine calling next once per request until it
// returns an error. closer is closed by Close to unblock next.
func NewPumpSource(next func() ([]byte, error), closer io.Closer) *PumpSource {
	p := &PumpSource{
		want:   make(chan struct{}, 1),
		ch:     make(chan chunk, 1),
		done:   make(chan struct{}),
		closer: closer,
	}
	go p.run(next)
	return p
}

// NewReaderPump pumps r in reads of at most size bytes
func NewReaderPump(r io.Reader, closer io.Closer, size int) *PumpSource {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return NewPumpSource(func() ([]byte, error) {
		buf := make([]byte, size)
		n, err := r.Read(buf)
		return buf[:max(n, 0)], err
	}, closer)
}

func (p *PumpSource) run(next func() ([]byte, error)) {
	defer close(p.ch)
	for {
		select {
		case <-p.want:
		case <-p.done:
			return
		}

		data, err := next()
		select {
		case p.ch <- chunk{data: data, err: err}:
		case <-p.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// WaitReadable asks the producer for the next chunk, unless one is already
// under way, and waits for it
func (p *PumpSource) WaitReadable(timeout time.Duration) (bool, error) {
	if len(p.pending) > 0 || p.err != nil {
		return true, nil
	}
	if !p.asked {
		p.want <- struct{}{}
		p.asked = true
	}
	return p.receive(timeout), nil
}

// receive waits up to timeout for the outstanding chunk; zero only polls.
// It reports whether there is now something for Read to return.
func (p *PumpSource) receive(timeout time.Duration) bool {
	if timeout == 0 {
		select {
		case c, ok := <-p.ch:
			return p.accept(c, ok)
		default:
			return false
		}
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case c, ok := <-p.ch:
		return p.accept(c, ok)
	case <-expired:
		return false
	}
}

func (p *PumpSource) accept(c chunk, ok bool) bool {
	p.asked = false
	if !ok {
		p.err = ErrClosed
		return true
	}
	p.pending = c.data
	p.err = c.err
	return len(p.pending) > 0 || p.err != nil
}

// Held waits up to timeout for a chunk already requested and returns the
// number of bytes pulled from the producer but not yet read. It never asks
// for more.
func (p *PumpSource) Held(timeout time.Duration) int {
	if len(p.pending) == 0 && p.err == nil && p.asked {
		p.receive(timeout)
	}
	return len(p.pending)
}

// Discard drops and returns the bytes pulled but not yet read.
// An outstanding request is not waited for.
func (p *PumpSource) Discard() []byte {
	if p.asked {
		p.receive(0)
	}
	held := p.pending
	p.pending = nil
	return held
}

// Read copies out of the current chunk, waiting for one if needed.
// The terminal error is returned once all data has been consumed.
func (p *PumpSource) Read(b []byte) (int, error) {
	for len(p.pending) == 0 && p.err == nil {
		if _, err := p.WaitReadable(-1); err != nil {
			return 0, err
		}
	}
	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		return n, nil
	}
	return 0, p.err
}

// Close stops the pump and closes the producer
func (p *PumpSource) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		if p.closer != nil {
			err = p.closer.Close()
		}
	})
	return err
}

var (
	_ Source     = (*PumpSource)(nil)
	_ Prefetcher = (*PumpSource)(nil)
)
