// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// It adapts the generic metrics.Backend interface to Prometheus using
// client_golang CounterVec and SummaryVec collectors and pushes the
// collected registry to a Pushgateway instead of exposing a scrape endpoint,
// which fits the engine's run-to-completion lifecycle. All
// Prometheus-specific dependencies stay inside this package.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"colsync/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	tableCounter   *prometheus.CounterVec // "ingest_tables_total"
	tableDuration  *prometheus.SummaryVec // "ingest_table_duration_seconds"
	rowCounter     *prometheus.CounterVec // "ingest_rows_total"
	chunkCounter   *prometheus.CounterVec // "ingest_chunks_total"
	qualityCounter *prometheus.CounterVec // "ingest_quality_events_total"
}

// NewBackend constructs a Prometheus Pushgateway backend. jobName becomes the
// Pushgateway "job" grouping key.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "colsync"
	}

	reg := prometheus.NewRegistry()

	tableCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_tables_total",
			Help: "Total table loads, partitioned by table and final status.",
		},
		[]string{"table", "status"},
	)
	tableDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "ingest_table_duration_seconds",
			Help:       "Wall-clock duration of table loads in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"table", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_rows_total",
			Help: "Rows written to the target store per table.",
		},
		[]string{"table"},
	)
	chunkCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_chunks_total",
			Help: "Write batches flushed per table.",
		},
		[]string{"table"},
	)
	qualityCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_quality_events_total",
			Help: "Per-cell data-quality degradations by table and reason.",
		},
		[]string{"table", "reason"},
	)

	for _, c := range []prometheus.Collector{
		tableCounter, tableDuration, rowCounter, chunkCounter, qualityCounter,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:     gatewayURL,
		jobName:        jobName,
		reg:            reg,
		tableCounter:   tableCounter,
		tableDuration:  tableDuration,
		rowCounter:     rowCounter,
		chunkCounter:   chunkCounter,
		qualityCounter: qualityCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "ingest_tables_total":
		b.tableCounter.WithLabelValues(labels["table"], labels["status"]).Add(delta)
	case "ingest_rows_total":
		b.rowCounter.WithLabelValues(labels["table"]).Add(delta)
	case "ingest_chunks_total":
		b.chunkCounter.WithLabelValues(labels["table"]).Add(delta)
	case "ingest_quality_events_total":
		b.qualityCounter.WithLabelValues(labels["table"], labels["reason"]).Add(delta)
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "ingest_table_duration_seconds" {
		return
	}
	b.tableDuration.WithLabelValues(labels["table"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
