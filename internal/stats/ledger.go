// Package stats holds the transfer counters maintained by the relay engine.
//
// A Ledger has a single owner, the relay loop, which mutates it on every I/O
// outcome. Readers on other goroutines must work from a Snapshot.
package stats

import (
	"maps"
	"time"
)

// Ledger tracks cumulative and per-interval transfer counters.
type Ledger struct {
	// TotalBytes is the number of bytes successfully written to the sink
	TotalBytes uint64
	// BytesSinceReport is the number of bytes written since the last periodic report
	BytesSinceReport uint64
	// BytesRead is the number of bytes pulled from the source
	BytesRead uint64
	// BytesLost is the number of bytes read but never delivered
	BytesLost uint64

	Start      time.Time
	LastReport time.Time

	// Histogram counts occurrences of each byte value; nil unless counting is enabled
	Histogram *[256]uint64

	Underwrites       uint64
	UnderwrittenBytes uint64
	InterruptedReads  uint64
	InterruptedWrites uint64
	Errors            uint64
	ErrorsByCode      map[string]uint64
}

// New creates a Ledger whose clocks start at now.
func New(now time.Time, counting bool) *Ledger {
	l := &Ledger{
		Start:        now,
		LastReport:   now,
		ErrorsByCode: make(map[string]uint64),
	}
	if counting {
		l.Histogram = new([256]uint64)
	}
	return l
}

// Counting reports whether the byte histogram is enabled
func (l *Ledger) Counting() bool {
	return l.Histogram != nil
}

// RecordRead accounts for a chunk pulled from the source.
func (l *Ledger) RecordRead(p []byte) {
	l.BytesRead += uint64(len(p))
	if l.Histogram != nil {
		for _, b := range p {
			l.Histogram[b]++
		}
	}
}

// RecordWrite accounts for n bytes accepted by the sink.
func (l *Ledger) RecordWrite(n int) {
	if n <= 0 {
		return
	}
	l.TotalBytes += uint64(n)
	l.BytesSinceReport += uint64(n)
}

// RecordUnderwrite notes a write that accepted fewer bytes than requested.
// shortfall is the number of bytes left for the next attempt.
func (l *Ledger) RecordUnderwrite(shortfall int) {
	l.Underwrites++
	l.UnderwrittenBytes += uint64(shortfall)
}

// RecordInterruptedRead notes a retryable read failure
func (l *Ledger) RecordInterruptedRead() {
	l.InterruptedReads++
}

// RecordInterruptedWrite notes a retryable write failure
func (l *Ledger) RecordInterruptedWrite() {
	l.InterruptedWrites++
}

// RecordError counts a non-retryable failure under its error code.
func (l *Ledger) RecordError(code string) {
	l.Errors++
	l.ErrorsByCode[code]++
}

// RecordLoss notes bytes that were read but can no longer be delivered.
func (l *Ledger) RecordLoss(n int) {
	if n > 0 {
		l.BytesLost += uint64(n)
	}
}

// MarkReported resets the per-interval counters after a periodic report.
func (l *Ledger) MarkReported(now time.Time) {
	l.BytesSinceReport = 0
	l.LastReport = now
}

// Pending returns bytes read but neither written nor lost.
func (l *Ledger) Pending() uint64 {
	return l.BytesRead - l.TotalBytes - l.BytesLost
}

// Snapshot is an immutable copy of the ledger counters, safe to hand to other goroutines.
// The histogram is not included.
type Snapshot struct {
	TotalBytes        uint64
	BytesRead         uint64
	BytesLost         uint64
	Start             time.Time
	Underwrites       uint64
	UnderwrittenBytes uint64
	InterruptedReads  uint64
	InterruptedWrites uint64
	Errors            uint64
	ErrorsByCode      map[string]uint64
}

// Snapshot copies the counters.
func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{
		TotalBytes:        l.TotalBytes,
		BytesRead:         l.BytesRead,
		BytesLost:         l.BytesLost,
		Start:             l.Start,
		Underwrites:       l.Underwrites,
		UnderwrittenBytes: l.UnderwrittenBytes,
		InterruptedReads:  l.InterruptedReads,
		InterruptedWrites: l.InterruptedWrites,
		Errors:            l.Errors,
		ErrorsByCode:      maps.Clone(l.ErrorsByCode),
	}
}
