// Package report renders periodic progress lines and the final summary of a relay run.
package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/julienstroheker/pipestats/internal/milestone"
	"github.com/julienstroheker/pipestats/internal/stats"
	"github.com/julienstroheker/pipestats/internal/units"
)

// Reporter writes progress lines to the diagnostic stream.
// It only reads the ledger, apart from resetting the per-interval counters after a report.
type Reporter struct {
	w        io.Writer
	interval time.Duration
	unit     units.Unit
	verbose  bool
}

// Options contains configuration for the Reporter
type Options struct {
	// Output receives report lines (normally stderr)
	Output io.Writer

	// Interval is the periodic report cadence; zero disables periodic reports
	Interval time.Duration

	// Unit is the display unit; units.Human picks one per amount
	Unit units.Unit

	// Verbose adds the diagnostic counters to the final report
	Verbose bool
}

// New creates a Reporter
func New(opts *Options) *Reporter {
	if opts == nil {
		opts = &Options{}
	}
	w := opts.Output
	if w == nil {
		w = io.Discard
	}
	return &Reporter{
		w:        w,
		interval: opts.Interval,
		unit:     opts.Unit,
		verbose:  opts.Verbose,
	}
}

// Interval returns the periodic report cadence
func (r *Reporter) Interval() time.Duration {
	return r.interval
}

// Due reports whether a periodic report should be emitted at now
func (r *Reporter) Due(l *stats.Ledger, now time.Time) bool {
	return r.interval > 0 && now.Sub(l.LastReport) >= r.interval
}

// Poll emits a periodic report if one is due and returns whether it did.
func (r *Reporter) Poll(l *stats.Ledger, now time.Time) bool {
	if !r.Due(l, now) {
		return false
	}

	_, _ = io.WriteString(r.w, r.Line(l, now)+"\n")
	l.MarkReported(now)
	return true
}

// Line formats the periodic report for the ledger state at now without touching the ledger.
func (r *Reporter) Line(l *stats.Ledger, now time.Time) string {
	current := rate(l.BytesSinceReport, now.Sub(l.LastReport))
	overall := rate(l.TotalBytes, now.Sub(l.Start))

	// The current interval reflects present conditions; when it moved nothing
	// the overall average is the only usable signal.
	etaRate := overall
	if l.BytesSinceReport > 0 {
		etaRate = current
	}
	est := milestone.Compute(l.TotalBytes, etaRate)

	eta := "?"
	if est.Known {
		eta = fmt.Sprintf("%.2f", est.Value)
	}

	return fmt.Sprintf("%s/sec, %s total, %s since last report, %s to %s in %s %s",
		r.format(current),
		r.format(float64(l.TotalBytes)),
		r.format(float64(l.BytesSinceReport)),
		r.format(float64(est.BytesRemaining)),
		r.format(float64(est.Next)),
		eta, est.Unit)
}

// Final writes the end-of-run summary. status describes how the run ended.
func (r *Reporter) Final(l *stats.Ledger, now time.Time, status string) {
	var b strings.Builder

	elapsed := now.Sub(l.Start)
	avg := rate(l.TotalBytes, elapsed)

	fmt.Fprintf(&b, "%s bytes (%s) total over %.2f secs, avg %s/sec",
		humanize.Comma(int64(l.TotalBytes)),
		r.format(float64(l.TotalBytes)),
		elapsed.Seconds(),
		r.format(avg))
	if status != "" {
		fmt.Fprintf(&b, " (%s)", status)
	}
	b.WriteString("\n")

	if l.Histogram != nil {
		writeHistogram(&b, l, r.unit)
	}

	if r.verbose {
		fmt.Fprintf(&b, "underwrites: %d (%d bytes), interrupted reads: %d, interrupted writes: %d, errors: %d\n",
			l.Underwrites, l.UnderwrittenBytes, l.InterruptedReads, l.InterruptedWrites, l.Errors)
		for _, code := range slices.Sorted(maps.Keys(l.ErrorsByCode)) {
			fmt.Fprintf(&b, "  errors[%s]: %d\n", code, l.ErrorsByCode[code])
		}
		if l.BytesLost > 0 {
			fmt.Fprintf(&b, "lost: %d bytes\n", l.BytesLost)
		}
	}

	_, _ = io.WriteString(r.w, b.String())
}

// writeHistogram lists every byte value that was seen with its scaled amount and share
func writeHistogram(b *strings.Builder, l *stats.Ledger, unit units.Unit) {
	var total uint64
	for _, c := range l.Histogram {
		total += c
	}
	if total == 0 {
		return
	}

	for value, count := range l.Histogram {
		if count == 0 {
			continue
		}
		pct := float64(count) / float64(total) * 100
		fmt.Fprintf(b, "  0x%02x: %d (%s, %.2f%%)\n", value, count, units.Format(float64(count), unit), pct)
	}
}

func (r *Reporter) format(bytes float64) string {
	return units.Format(bytes, r.unit)
}

// rate returns bytes per second, or zero when no time has elapsed
func rate(bytes uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes) / elapsed.Seconds()
}
