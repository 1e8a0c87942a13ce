// Package metrics exposes relay counters over HTTP for Prometheus scrapes.
package metrics

import (
	"maps"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/julienstroheker/pipestats/internal/stats"
)

const namespace = "pipestats"

// Exporter publishes the latest ledger copy as Prometheus metrics.
// Observe runs on the relay goroutine; Collect runs on scrape goroutines.
type Exporter struct {
	mu   sync.Mutex
	snap stats.Snapshot

	bytesRead         *prometheus.Desc
	bytesWritten      *prometheus.Desc
	bytesLost         *prometheus.Desc
	underwrites       *prometheus.Desc
	underwrittenBytes *prometheus.Desc
	interruptedReads  *prometheus.Desc
	interruptedWrites *prometheus.Desc
	errors            *prometheus.Desc
	startTime         *prometheus.Desc
}

// NewExporter creates an Exporter with zeroed counters
func NewExporter() *Exporter {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Exporter{
		bytesRead:         desc("bytes_read_total", "Bytes pulled from the input."),
		bytesWritten:      desc("bytes_written_total", "Bytes delivered to the output."),
		bytesLost:         desc("bytes_lost_total", "Bytes read but never delivered."),
		underwrites:       desc("underwrites_total", "Writes that accepted fewer bytes than offered."),
		underwrittenBytes: desc("underwritten_bytes_total", "Bytes left over by short writes."),
		interruptedReads:  desc("interrupted_reads_total", "Reads retried after a transient error."),
		interruptedWrites: desc("interrupted_writes_total", "Writes retried after a transient error."),
		errors:            desc("errors_total", "Fatal and peer-gone errors by code.", "code"),
		startTime:         desc("start_time_seconds", "Unix time the relay started."),
	}
}

// Observe copies the ledger counters.
// The error map is only cloned when the error count moved.
func (e *Exporter) Observe(l *stats.Ledger) {
	e.mu.Lock()
	defer e.mu.Unlock()

	codes := e.snap.ErrorsByCode
	if codes == nil || l.Errors != e.snap.Errors {
		codes = maps.Clone(l.ErrorsByCode)
	}

	e.snap = stats.Snapshot{
		TotalBytes:        l.TotalBytes,
		BytesRead:         l.BytesRead,
		BytesLost:         l.BytesLost,
		Start:             l.Start,
		Underwrites:       l.Underwrites,
		UnderwrittenBytes: l.UnderwrittenBytes,
		InterruptedReads:  l.InterruptedReads,
		InterruptedWrites: l.InterruptedWrites,
		Errors:            l.Errors,
		ErrorsByCode:      codes,
	}
}

// Snapshot returns the last observed counters
func (e *Exporter) Snapshot() stats.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.snap
	s.ErrorsByCode = maps.Clone(s.ErrorsByCode)
	return s
}

// Describe implements prometheus.Collector
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.bytesRead
	ch <- e.bytesWritten
	ch <- e.bytesLost
	ch <- e.underwrites
	ch <- e.underwrittenBytes
	ch <- e.interruptedReads
	ch <- e.interruptedWrites
	ch <- e.errors
	ch <- e.startTime
}

// Collect implements prometheus.Collector
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	s := e.Snapshot()

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	counter(e.bytesRead, s.BytesRead)
	counter(e.bytesWritten, s.TotalBytes)
	counter(e.bytesLost, s.BytesLost)
	counter(e.underwrites, s.Underwrites)
	counter(e.underwrittenBytes, s.UnderwrittenBytes)
	counter(e.interruptedReads, s.InterruptedReads)
	counter(e.interruptedWrites, s.InterruptedWrites)
	for code, n := range s.ErrorsByCode {
		counter(e.errors, n, code)
	}

	if !s.Start.IsZero() {
		ch <- prometheus.MustNewConstMetric(e.startTime, prometheus.GaugeValue,
			float64(s.Start.UnixNano())/1e9)
	}
}

var _ prometheus.Collector = (*Exporter)(nil)
