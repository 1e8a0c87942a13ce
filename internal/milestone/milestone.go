// Package milestone estimates the time needed to reach the next round-number
// byte threshold at a given throughput.
package milestone

import (
	"math"

	"github.com/julienstroheker/pipestats/internal/units"
)

// Table is the ascending list of byte thresholds.
var Table = []uint64{
	1 * uint64(units.Megabytes),
	10 * uint64(units.Megabytes),
	50 * uint64(units.Megabytes),
	500 * uint64(units.Megabytes),
	1 * uint64(units.Gigabytes),
	10 * uint64(units.Gigabytes),
	1024 * uint64(units.Gigabytes),
}

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 24 * secondsPerHour
)

// Estimate describes the distance to the next milestone.
type Estimate struct {
	// Next is the milestone being approached
	Next uint64
	// BytesRemaining is Next minus the bytes transferred so far
	BytesRemaining uint64
	// Seconds is the raw time remaining; +Inf when the rate is unknown
	Seconds float64
	// Value is Seconds expressed in Unit
	Value float64
	// Unit is one of "days", "hrs", "mins" or "secs"
	Unit string
	// Known is false when no rate was available to compute a time
	Known bool
}

// Next returns the first milestone strictly greater than total. Past the end
// of the table it keeps stepping by the largest entry. If that would
// overflow, total itself is returned.
func Next(total uint64) uint64 {
	for _, m := range Table {
		if m > total {
			return m
		}
	}

	step := Table[len(Table)-1]
	// Largest multiple of step that is <= total, then one more step.
	next := (total/step)*step + step
	if next < step || next <= total {
		return total
	}
	return next
}

// Compute estimates the remaining bytes and time to the next milestone at bytesPerSec.
func Compute(total uint64, bytesPerSec float64) Estimate {
	next := Next(total)
	e := Estimate{
		Next:           next,
		BytesRemaining: next - total,
		Unit:           "secs",
	}

	if bytesPerSec <= 0 || math.IsNaN(bytesPerSec) || math.IsInf(bytesPerSec, 0) {
		e.Seconds = math.Inf(1)
		e.Value = math.Inf(1)
		return e
	}

	e.Known = true
	e.Seconds = float64(e.BytesRemaining) / bytesPerSec

	switch {
	case e.Seconds >= secondsPerDay:
		e.Value, e.Unit = e.Seconds/secondsPerDay, "days"
	case e.Seconds >= secondsPerHour:
		e.Value, e.Unit = e.Seconds/secondsPerHour, "hrs"
	case e.Seconds >= secondsPerMinute:
		e.Value, e.Unit = e.Seconds/secondsPerMinute, "mins"
	default:
		e.Value = e.Seconds
	}
	return e
}
