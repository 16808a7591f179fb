package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	c := Config{
		Job: "test",
		Source: Source{
			Kind:      "mysql",
			DSN:       "u:p@tcp(localhost:3306)/",
			Databases: []string{"shop"},
			ID:        "shop",
		},
		Target: Target{
			Addr:     []string{"localhost:9000"},
			Database: "raw",
		},
	}
	c.ApplyDefaults()
	return c
}

func hasIssue(issues []Issue, path string, sev IssueSeverity) bool {
	for _, i := range issues {
		if i.Path == path && i.Severity == sev {
			return true
		}
	}
	return false
}

func TestValidate_CleanConfig(t *testing.T) {
	t.Parallel()
	for _, i := range Validate(validConfig()) {
		if i.Severity == SeverityError {
			t.Errorf("unexpected error: %v", i)
		}
	}
}

/*
TestValidate_Errors covers the blocking findings: missing source/target
coordinates, negative tuning values, and dedup modes without the columns
they need.
*/
func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	c := validConfig()
	c.Source.Kind = ""
	c.Target.Addr = nil
	if issues := Validate(c); !hasIssue(issues, "source.kind", SeverityError) ||
		!hasIssue(issues, "target.addr", SeverityError) {
		t.Errorf("missing expected errors: %v", issues)
	}

	c = validConfig()
	c.Load.ChunkSize = -1
	c.Load.Workers = -1
	if issues := Validate(c); !hasIssue(issues, "load.chunk_size", SeverityError) ||
		!hasIssue(issues, "load.workers", SeverityError) {
		t.Errorf("negative tuning not flagged: %v", issues)
	}

	c = validConfig()
	c.Load.DedupMode = DedupStaging
	issues := Validate(c)
	if !hasIssue(issues, "load.unique_key", SeverityError) {
		t.Errorf("staging without unique_key not flagged: %v", issues)
	}
	if !hasIssue(issues, "load.version_column", SeverityWarning) {
		t.Errorf("missing version_column should warn: %v", issues)
	}

	c = validConfig()
	c.Load.DedupMode = "upsert"
	if issues := Validate(c); !hasIssue(issues, "load.dedup_mode", SeverityError) {
		t.Errorf("unknown dedup mode not flagged: %v", issues)
	}
}

// sqlite is schemaless: no databases required.
func TestValidate_SqliteNoDatabases(t *testing.T) {
	t.Parallel()

	c := validConfig()
	c.Source.Kind = "sqlite"
	c.Source.Databases = nil
	if issues := Validate(c); hasIssue(issues, "source.databases", SeverityError) {
		t.Errorf("sqlite should not require databases: %v", issues)
	}
}

func TestTables_Match(t *testing.T) {
	t.Parallel()

	tb := Tables{Include: []string{"users", "Orders"}, Exclude: []string{"orders"}}
	if !tb.Match("USERS") {
		t.Error("include match should be case-insensitive")
	}
	if tb.Match("orders") {
		t.Error("exclude must win over include")
	}
	if tb.Match("other") {
		t.Error("non-included table matched")
	}

	open := Tables{}
	if !open.Match("anything") {
		t.Error("empty include should match all")
	}
}

func TestLoadFile_Defaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cfg.json")
	body := `{"source":{"kind":"sqlite","dsn":"file:x.db"},"target":{"addr":["h:9000"],"database":"raw"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if c.Load.ChunkSize != DefaultChunkSize {
		t.Errorf("chunk size = %d; want default %d", c.Load.ChunkSize, DefaultChunkSize)
	}
	if c.Load.Workers != DefaultWorkers {
		t.Errorf("workers = %d; want default %d", c.Load.Workers, DefaultWorkers)
	}
	if c.Load.DedupMode != DedupNone {
		t.Errorf("dedup = %s; want none", c.Load.DedupMode)
	}
	if c.Job == "" || c.ReportPath == "" {
		t.Errorf("job/report defaults not applied: %+v", c)
	}
}

func TestDateBounds(t *testing.T) {
	t.Parallel()

	c := validConfig()
	c.Load.MinDate = "2000-01-01"
	c.Load.MaxDate = "2030-12-31"
	lo, hi, err := c.DateBounds()
	if err != nil {
		t.Fatalf("DateBounds: %v", err)
	}
	if lo.Year() != 2000 || hi.Year() != 2030 {
		t.Errorf("bounds = %v..%v", lo, hi)
	}

	c.Load.MinDate = "01/01/2000"
	if _, _, err := c.DateBounds(); err == nil {
		t.Error("bad date layout should error")
	}
}
