package relay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/julienstroheker/pipestats/internal/logging"
	"github.com/julienstroheker/pipestats/internal/report"
	"github.com/julienstroheker/pipestats/internal/stats"
)

const (
	// DefaultBufferSize is the transfer buffer capacity used when none is given
	DefaultBufferSize = 64 * 1024

	// IdlePollTimeout bounds readiness waits when periodic reporting is disabled
	IdlePollTimeout = 250 * time.Millisecond
)

// Exit codes returned by Run
const (
	ExitOK          = 0
	ExitIOError     = 1
	ExitInterrupted = 130
)

type state int

const (
	stateAwaitRead state = iota
	stateWriting
	stateDraining
	stateDone
)

func (s state) String() string {
	switch s {
	case stateAwaitRead:
		return "await-read"
	case stateWriting:
		return "writing"
	case stateDraining:
		return "draining"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Outcome describes why a relay run ended
type Outcome int

const (
	// OutcomeEOF is a clean end of input
	OutcomeEOF Outcome = iota
	// OutcomeSourceGone is an input that broke off; buffered data was still delivered
	OutcomeSourceGone
	// OutcomeReadError is a fatal read failure
	OutcomeReadError
	// OutcomeWriteError is a closed sink or a fatal write failure
	OutcomeWriteError
	// OutcomeStopped is a requested shutdown
	OutcomeStopped
)

// Result summarizes a finished run
type Result struct {
	Outcome  Outcome
	ExitCode int

	// Lost is the number of bytes read but never delivered
	Lost uint64

	// Err is the error that ended the run, if any
	Err error

	// Code is the symbolic code of Err
	Code string

	// Signal names the signal that stopped the run
	Signal string
}

// Status is the outcome suffix of the final report line
func (r *Result) Status() string {
	switch r.Outcome {
	case OutcomeEOF:
		return "end of input"
	case OutcomeSourceGone:
		return "end of input, source closed early"
	case OutcomeReadError:
		return "aborted: read error " + r.Code
	case OutcomeWriteError:
		return fmt.Sprintf("aborted: write error %s, %d bytes lost", r.Code, r.Lost)
	case OutcomeStopped:
		if r.Signal != "" {
			return "interrupted by signal " + r.Signal
		}
		return "interrupted"
	default:
		return ""
	}
}

// Options contains configuration for an Engine
type Options struct {
	// Source and Sink are the two ends of the relay (required)
	Source Source
	Sink   Sink

	// Ledger receives every I/O outcome (required)
	Ledger *stats.Ledger

	// Reporter is polled once per iteration and writes the final summary
	Reporter *report.Reporter

	// Shutdown is checked at the top of every iteration
	Shutdown Stopper

	// Observer sees the ledger after every iteration
	Observer Observer

	// Limiter caps throughput in bytes per second
	Limiter *rate.Limiter

	// BufferSize is the transfer buffer capacity
	BufferSize int

	// PollTimeout bounds every readiness wait; negative waits indefinitely
	PollTimeout time.Duration

	// Logger defaults to the logger carried by the run context
	Logger *logging.Logger

	// Now is the clock, time.Now by default
	Now func() time.Time
}

// Engine copies a Source to a Sink one bounded chunk at a time.
// All of its state, the ledger included, is owned by the goroutine calling Run.
type Engine struct {
	src      Source
	dst      Sink
	ledger   *stats.Ledger
	reporter *report.Reporter
	stopper  Stopper
	observer Observer
	limiter  *rate.Limiter
	logger   *logging.Logger
	now      func() time.Time
	sleep    func(time.Duration)
	timeout  time.Duration

	// transfer buffer: buf[off:n] is read but not yet written
	buf []byte
	n   int
	off int

	eof        bool
	sourceGone bool
	readErr    error
	stopping   bool
	resume     time.Time

	result Result
}

// PollTimeout derives the readiness wait bound from the report interval.
func PollTimeout(interval time.Duration, blocking bool) time.Duration {
	switch {
	case interval > 0:
		return interval / 2
	case blocking:
		return -1
	default:
		return IdlePollTimeout
	}
}

// NewEngine creates an Engine
func NewEngine(opts *Options) (*Engine, error) {
	if opts == nil {
		return nil, errors.New("engine options are required")
	}
	if opts.Source == nil || opts.Sink == nil {
		return nil, errors.New("source and sink are required")
	}
	if opts.Ledger == nil {
		return nil, errors.New("ledger is required")
	}

	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		src:      opts.Source,
		dst:      opts.Sink,
		ledger:   opts.Ledger,
		reporter: opts.Reporter,
		stopper:  opts.Shutdown,
		observer: opts.Observer,
		limiter:  opts.Limiter,
		logger:   opts.Logger,
		now:      now,
		sleep:    time.Sleep,
		timeout:  opts.PollTimeout,
		buf:      make([]byte, size),
	}, nil
}

// Run relays until end of input, a fatal error, or a shutdown request.
// It never returns an error; everything that happened is in the Result and the final report.
func (e *Engine) Run(ctx context.Context) *Result {
	if e.logger == nil {
		e.logger = logging.FromContext(ctx)
	}

	st := stateAwaitRead
	for st != stateDone {
		e.tick()

		if !e.stopping && e.stopRequested(ctx) {
			e.stopping = true
			e.logger.Info("Shutdown requested, draining buffered data", logging.Int("buffered", e.n-e.off))
		}

		prev := st
		switch st {
		case stateAwaitRead:
			if e.stopping {
				st = e.drainHeld()
				break
			}
			st = e.awaitRead()
		case stateWriting, stateDraining:
			if e.stopping {
				st = stateDraining
			}
			st = e.write(st)
		}
		if st != prev {
			e.logger.Debug("Relay state changed", logging.String("from", prev.String()), logging.String("to", st.String()))
		}
	}

	e.flush()
	e.settle(ctx)

	if e.reporter != nil {
		e.reporter.Final(e.ledger, e.now(), e.result.Status())
	}
	if e.observer != nil {
		e.observer.Observe(e.ledger)
	}

	return &e.result
}

// tick runs the per-iteration collaborators
func (e *Engine) tick() {
	if e.reporter != nil {
		e.reporter.Poll(e.ledger, e.now())
	}
	if e.observer != nil {
		e.observer.Observe(e.ledger)
	}
}

func (e *Engine) stopRequested(ctx context.Context) bool {
	if e.stopper != nil && e.stopper.Requested() {
		return true
	}
	return ctx.Err() != nil
}

func (e *Engine) awaitRead() state {
	if e.throttled() {
		return stateAwaitRead
	}

	ready, err := e.src.WaitReadable(e.timeout)
	if err != nil {
		return e.readFailed(0, err)
	}
	if !ready {
		return stateAwaitRead
	}

	p := e.buf
	if e.limiter != nil {
		if burst := e.limiter.Burst(); burst > 0 && burst < len(p) {
			p = p[:burst]
		}
	}

	return e.read(p)
}

func (e *Engine) read(p []byte) state {
	n, err := e.src.Read(p)
	if n < 0 {
		n = 0
	}
	if n > 0 {
		e.ledger.RecordRead(p[:n])
		e.n, e.off = n, 0
		e.reserve(n)
	}
	if err != nil {
		return e.readFailed(n, err)
	}
	if n > 0 {
		return stateWriting
	}
	return stateAwaitRead
}

// drainHeld moves input a Prefetcher already took from its producer into the
// buffer once shutdown is requested. Nothing new is pulled.
func (e *Engine) drainHeld() state {
	pf, ok := e.src.(Prefetcher)
	if !ok || e.eof || e.readErr != nil {
		return e.finish(e.drainedOutcome(), e.readErr)
	}
	timeout := e.timeout
	if timeout < 0 {
		timeout = IdlePollTimeout
	}
	if pf.Held(timeout) == 0 {
		return e.finish(e.drainedOutcome(), e.readErr)
	}
	return e.read(e.buf)
}

// readFailed handles a read error that came with n freshly read bytes
func (e *Engine) readFailed(n int, err error) state {
	kind := Classify(OpRead, err)
	switch kind {
	case KindRetry:
		if n == 0 {
			e.ledger.RecordInterruptedRead()
			e.logger.Debug("Read interrupted, retrying", logging.Error(err))
		}
	case KindEOF:
		e.eof = true
	case KindSourceGone:
		e.eof = true
		e.sourceGone = true
		e.result.Code = ErrorCode(err)
		e.ledger.RecordError(e.result.Code)
		e.logger.Warn("Input closed before end of stream, finishing with data already read",
			e.failureFields(OpRead, kind, err)...)
	default:
		e.readErr = err
		e.result.Code = ErrorCode(err)
		e.ledger.RecordError(e.result.Code)
		e.logger.Error("Read failed", e.failureFields(OpRead, kind, err)...)
	}

	if e.n > e.off {
		if e.eof || e.readErr != nil {
			return stateDraining
		}
		return stateWriting
	}
	if e.eof || e.readErr != nil {
		return e.finish(e.drainedOutcome(), e.readErr)
	}
	return stateAwaitRead
}

func (e *Engine) write(st state) state {
	ready, err := e.dst.WaitWritable(e.timeout)
	if err != nil {
		if Classify(OpWrite, err) == KindRetry {
			e.ledger.RecordInterruptedWrite()
			return st
		}
		return e.writeFailed(err)
	}
	if !ready {
		return st
	}

	remaining := e.n - e.off
	w, err := e.dst.Write(e.buf[e.off:e.n])
	w = max(0, min(w, remaining))
	if w > 0 {
		e.ledger.RecordWrite(w)
		e.off += w
		if w < remaining {
			e.ledger.RecordUnderwrite(remaining - w)
		}
	}

	if err != nil && Classify(OpWrite, err) != KindRetry {
		return e.writeFailed(err)
	}
	if w == 0 {
		e.ledger.RecordInterruptedWrite()
		e.logger.Debug("Write made no progress, retrying", logging.Error(err))
	}

	if e.off < e.n {
		return st
	}
	e.n, e.off = 0, 0

	if e.eof || e.readErr != nil {
		return e.finish(e.drainedOutcome(), e.readErr)
	}
	return stateAwaitRead
}

// writeFailed discards the undeliverable remainder of the buffer and ends the run
func (e *Engine) writeFailed(err error) state {
	kind := Classify(OpWrite, err)
	lost := e.n - e.off
	e.n, e.off = 0, 0
	if pf, ok := e.src.(Prefetcher); ok {
		if held := pf.Discard(); len(held) > 0 {
			e.ledger.RecordRead(held)
			lost += len(held)
		}
	}

	e.result.Code = ErrorCode(err)
	e.result.Lost = uint64(lost)
	e.ledger.RecordError(e.result.Code)
	e.ledger.RecordLoss(lost)

	fields := append(e.failureFields(OpWrite, kind, err), logging.Int("bytes_lost", lost))
	if kind == KindSinkGone {
		e.logger.Error("Output closed, data could not be delivered", fields...)
	} else {
		e.logger.Error("Write failed", fields...)
	}

	return e.finish(OutcomeWriteError, err)
}

// drainedOutcome is the outcome once the buffer is empty
func (e *Engine) drainedOutcome() Outcome {
	switch {
	case e.readErr != nil:
		return OutcomeReadError
	case e.sourceGone:
		return OutcomeSourceGone
	case e.eof:
		return OutcomeEOF
	default:
		return OutcomeStopped
	}
}

func (e *Engine) finish(outcome Outcome, err error) state {
	e.result.Outcome = outcome
	e.result.Err = err
	return stateDone
}

// flush pushes sink-held data. A failure turns a clean end of input into a
// write error; read errors and requested stops keep their outcome.
func (e *Engine) flush() {
	err := e.dst.Flush()
	if err == nil {
		return
	}
	kind := Classify(OpWrite, err)
	switch e.result.Outcome {
	case OutcomeWriteError:
		// writeFailed already reported the sink
		e.logger.Debug("Flush failed after write error", logging.Error(err))
		return
	case OutcomeReadError, OutcomeStopped:
		e.ledger.RecordError(ErrorCode(err))
		e.logger.Error("Flush failed", e.failureFields(OpWrite, kind, err)...)
		return
	}
	e.logger.Error("Flush failed", e.failureFields(OpWrite, kind, err)...)
	e.result.Outcome = OutcomeWriteError
	e.result.Err = err
	e.result.Code = ErrorCode(err)
	e.ledger.RecordError(e.result.Code)
}

// settle fills in the exit code and signal name
func (e *Engine) settle(ctx context.Context) {
	switch e.result.Outcome {
	case OutcomeEOF, OutcomeSourceGone:
		e.result.ExitCode = ExitOK
	case OutcomeReadError, OutcomeWriteError:
		e.result.ExitCode = ExitIOError
	case OutcomeStopped:
		e.result.ExitCode = ExitInterrupted
		if e.stopper != nil && e.stopper.Requested() {
			e.result.ExitCode = e.stopper.ExitCode()
			if s, ok := e.stopper.(interface{ Signal() os.Signal }); ok && s.Signal() != nil {
				e.result.Signal = signalName(s.Signal())
			}
		} else if ctx.Err() != nil {
			e.logger.Debug("Run context finished", logging.Error(ctx.Err()))
		}
	}
}

// throttled waits out part of a pending rate limit reservation.
// It returns true while the reservation has not matured.
func (e *Engine) throttled() bool {
	if e.limiter == nil || e.resume.IsZero() {
		return false
	}
	wait := e.resume.Sub(e.now())
	if wait <= 0 {
		e.resume = time.Time{}
		return false
	}
	if e.timeout >= 0 && wait > e.timeout {
		wait = e.timeout
	}
	e.sleep(wait)
	return true
}

// reserve books n bytes against the limiter
func (e *Engine) reserve(n int) {
	if e.limiter == nil {
		return
	}
	now := e.now()
	r := e.limiter.ReserveN(now, n)
	if !r.OK() {
		return
	}
	if d := r.DelayFrom(now); d > 0 {
		e.resume = now.Add(d)
	}
}

func (e *Engine) failureFields(op Op, kind Kind, err error) []logging.Field {
	fields := []logging.Field{
		logging.String("op", string(op)),
		logging.String("kind", kind.String()),
		logging.String("code", ErrorCode(err)),
		logging.Error(err),
	}
	if errno, ok := Errno(err); ok {
		fields = append(fields, logging.Int("errno", errno))
	}
	return fields
}
