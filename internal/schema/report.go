package schema

import (
	"encoding/json"
	"os"
	"time"
)

// Status classifies the outcome of a single table's ingestion.
type Status string

const (
	// StatusSuccess: all chunks written, post-load dedup (if any) completed.
	StatusSuccess Status = "success"
	// StatusSkipped: table not present at the source; not a failure.
	StatusSkipped Status = "skipped"
	// StatusRecoverable: this table failed but the run continued.
	StatusRecoverable Status = "recoverable"
	// StatusFatal: connectivity-level failure; the run was aborted.
	StatusFatal Status = "fatal"
)

// maxErrors bounds the error list carried per table so a pathological load
// cannot balloon the report artifact.
const maxErrors = 10

// IngestionOutcome is the per-table result recorded in the run report.
type IngestionOutcome struct {
	Table        string   `json:"table"`
	TargetTable  string   `json:"target_table,omitempty"`
	RowsInserted int64    `json:"rows_inserted"`
	Status       Status   `json:"status"`
	Errors       []string `json:"errors,omitempty"`
}

// AddError appends msg to the bounded error list.
func (o *IngestionOutcome) AddError(msg string) {
	if len(o.Errors) < maxErrors {
		o.Errors = append(o.Errors, msg)
	}
}

// Discrepancy records a source/target row-count mismatch found by the
// post-run reconciliation pass. Informational only.
type Discrepancy struct {
	Table      string `json:"table"`
	SourceRows int64  `json:"source_rows"`
	TargetRows int64  `json:"target_rows"`
}

// RunReport is the sole externally visible artifact of a run. Orchestration
// agents consume this JSON file, never log text.
type RunReport struct {
	Job           string             `json:"job"`
	StartedAt     time.Time          `json:"started_at"`
	FinishedAt    time.Time          `json:"finished_at"`
	Success       bool               `json:"success"`
	Fatal         bool               `json:"fatal"`
	TotalRows     int64              `json:"total_rows"`
	Tables        []IngestionOutcome `json:"tables"`
	FailedTables  []string           `json:"failed_tables"`
	Discrepancies []Discrepancy      `json:"discrepancies,omitempty"`
}

// Add folds one outcome into the report totals.
func (r *RunReport) Add(o IngestionOutcome) {
	r.Tables = append(r.Tables, o)
	r.TotalRows += o.RowsInserted
	switch o.Status {
	case StatusRecoverable:
		r.FailedTables = append(r.FailedTables, o.Table)
	case StatusFatal:
		r.FailedTables = append(r.FailedTables, o.Table)
		r.Fatal = true
	}
}

// Finish stamps the end time and computes the success flag.
func (r *RunReport) Finish() {
	r.FinishedAt = time.Now().UTC()
	r.Success = !r.Fatal && len(r.FailedTables) == 0
}

// ExitCode maps the report onto the process exit contract:
// 0 all tables succeeded, 1 recoverable failures, 2 fatal.
func (r *RunReport) ExitCode() int {
	switch {
	case r.Fatal:
		return 2
	case len(r.FailedTables) > 0:
		return 1
	default:
		return 0
	}
}

// WriteFile serializes the report as indented JSON to path. The report is
// written exactly once, at the end of every run, fatal aborts included.
func (r *RunReport) WriteFile(path string) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
