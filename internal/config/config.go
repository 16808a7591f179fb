// Package config defines the canonical, JSON-serializable configuration model
// for the ingestion engine. It is intentionally small and explicit so runs
// can be loaded from disk and passed through the program without glue code.
//
// Decoding is performed by the standard library; flag overrides are applied
// in cmd/colsync. No third-party config libraries.
package config

import (
	"encoding/json"
	"os"
	"strings"
	"time"
)

// DedupMode selects the strategy for collapsing repeated loads of the same
// logical row into one current version.
type DedupMode string

const (
	// DedupNone: plain append; no reconciliation.
	DedupNone DedupMode = "none"
	// DedupReplacing: rely on the target engine's background compaction,
	// forced synchronously once at the end of load.
	DedupReplacing DedupMode = "replacing"
	// DedupStaging: post-load rank-and-swap into a fresh table.
	DedupStaging DedupMode = "staging"
)

// Config is the top-level run configuration.
type Config struct {
	// Job names the run; used for metrics labeling and the report artifact.
	Job string `json:"job"`

	Source Source `json:"source"`
	Target Target `json:"target"`
	Tables Tables `json:"tables"`
	Load   Load   `json:"load"`

	// ReportPath is where the run report JSON is written. Always written,
	// fatal aborts included.
	ReportPath string `json:"report_path"`

	// MetricsBackend selects the metrics sink ("pushgateway" or "none").
	MetricsBackend string `json:"metrics_backend"`
	// PushgatewayURL is the Pushgateway base URL when the backend is
	// "pushgateway".
	PushgatewayURL string `json:"pushgateway_url"`
}

// Source describes the relational source. Access is strictly read-only.
type Source struct {
	// Kind selects the source backend: "mysql", "postgres", "mssql", "sqlite".
	Kind string `json:"kind"`
	// DSN is the driver connection string.
	DSN string `json:"dsn"`
	// Databases lists the source databases/schemas to ingest.
	Databases []string `json:"databases"`
	// ID is the deterministic source identifier combined with each source
	// table name to form the target table name (<id>_<table>).
	ID string `json:"id"`
}

// Target describes the columnar target store.
type Target struct {
	Addr     []string `json:"addr"`
	Database string   `json:"database"`
	Username string   `json:"username"`
	Password string   `json:"password"`
}

// Tables filters the discovered table set. Include empty means "all".
type Tables struct {
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`
}

// Match reports whether a table passes the include/exclude filters.
func (t Tables) Match(name string) bool {
	for _, ex := range t.Exclude {
		if strings.EqualFold(ex, name) {
			return false
		}
	}
	if len(t.Include) == 0 {
		return true
	}
	for _, in := range t.Include {
		if strings.EqualFold(in, name) {
			return true
		}
	}
	return false
}

// Load controls chunking, dedup, and parallelism.
type Load struct {
	// ChunkSize bounds memory and write-batch size. Default 50000.
	ChunkSize int `json:"chunk_size"`
	// Limit caps total rows read per table (testing/sampling). 0 = all.
	Limit int `json:"limit"`
	// Workers is the bounded pool size for independent tables. Default 1
	// (strictly sequential).
	Workers int `json:"workers"`
	// Truncate empties each target table before loading.
	Truncate bool `json:"truncate"`

	DedupMode     DedupMode `json:"dedup_mode"`
	UniqueKey     string    `json:"unique_key"`
	VersionColumn string    `json:"version_column"`

	// MinDate/MaxDate bound the datetime validity window ("2006-01-02").
	// Empty uses the engine defaults.
	MinDate string `json:"min_date"`
	MaxDate string `json:"max_date"`
}

// Defaults applied after decode.
const (
	DefaultChunkSize = 50000
	DefaultWorkers   = 1
)

// LoadFile reads and decodes a config file, applying defaults.
func LoadFile(path string) (Config, error) {
	var c Config
	f, err := os.Open(path)
	if err != nil {
		return c, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&c); err != nil {
		return c, err
	}
	c.ApplyDefaults()
	return c, nil
}

// ApplyDefaults fills zero values with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Load.ChunkSize <= 0 {
		c.Load.ChunkSize = DefaultChunkSize
	}
	if c.Load.Workers <= 0 {
		c.Load.Workers = DefaultWorkers
	}
	if c.Load.DedupMode == "" {
		c.Load.DedupMode = DedupNone
	}
	if c.ReportPath == "" {
		c.ReportPath = "colsync_report.json"
	}
	if c.Job == "" {
		c.Job = "colsync"
	}
}

// DateBounds parses the MinDate/MaxDate window. Zero times mean "use engine
// default".
func (c *Config) DateBounds() (min, max time.Time, err error) {
	if c.Load.MinDate != "" {
		min, err = time.Parse("2006-01-02", c.Load.MinDate)
		if err != nil {
			return
		}
	}
	if c.Load.MaxDate != "" {
		max, err = time.Parse("2006-01-02", c.Load.MaxDate)
		if err != nil {
			return
		}
	}
	return
}
