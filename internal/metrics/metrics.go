// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from the ingestion engine.
//
// It exposes a narrow interface (Backend) focused on counters and timing
// data, behind a global, pluggable backend that defaults to a no-op
// implementation. Metrics are always safe to call even when no real backend
// is configured; concrete metric systems live in subpackages.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordTable records the outcome of one table's load: a status-labeled
// completion counter, the rows written, and the wall-clock duration.
func RecordTable(table, status string, rows int64, d time.Duration) {
	lbls := Labels{
		"table":  table,
		"status": status,
	}
	backend.IncCounter("ingest_tables_total", 1, lbls)
	if rows > 0 {
		backend.IncCounter("ingest_rows_total", float64(rows), Labels{"table": table})
	}
	backend.ObserveHistogram("ingest_table_duration_seconds", d.Seconds(), lbls)
}

// RecordChunks increments the chunk counter for the given table.
func RecordChunks(table string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("ingest_chunks_total", float64(delta), Labels{
		"table": table,
	})
}

// RecordQuality counts per-cell data-quality degradations by reason.
func RecordQuality(table, reason string) {
	backend.IncCounter("ingest_quality_events_total", 1, Labels{
		"table":  table,
		"reason": reason,
	})
}
