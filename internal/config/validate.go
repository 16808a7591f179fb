// This file adds a lightweight linter for Config values. It performs static
// checks over a decoded Config and returns a list of issues (errors and
// warnings) that callers can surface in the CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding surfaced to users that does not
	// block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into
// the config (e.g. "source.dsn"); Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error where needed.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate performs static validation of a Config. It does not mutate the
// config; callers decide whether to treat warnings as fatal.
func Validate(c Config) []Issue {
	var issues []Issue

	issues = append(issues, validateSource(c.Source)...)
	issues = append(issues, validateTarget(c.Target)...)
	issues = append(issues, validateLoad(c.Load)...)

	return issues
}

var knownSourceKinds = map[string]struct{}{
	"mysql":    {},
	"postgres": {},
	"mssql":    {},
	"sqlite":   {},
}

func validateSource(s Source) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{SeverityError, "source.kind", "source.kind must not be empty"})
		return issues
	}
	if _, ok := knownSourceKinds[s.Kind]; !ok {
		issues = append(issues, Issue{
			SeverityWarning, "source.kind",
			fmt.Sprintf("unknown source kind %q; ensure a matching backend is registered", s.Kind),
		})
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "source.dsn", "source.dsn must not be empty"})
	}
	if len(s.Databases) == 0 && s.Kind != "sqlite" {
		issues = append(issues, Issue{SeverityError, "source.databases", "at least one source database is required"})
	}
	if strings.TrimSpace(s.ID) == "" {
		issues = append(issues, Issue{
			SeverityWarning, "source.id",
			"source.id is empty; target tables will carry no source prefix",
		})
	}

	return issues
}

func validateTarget(t Target) []Issue {
	var issues []Issue

	if len(t.Addr) == 0 {
		issues = append(issues, Issue{SeverityError, "target.addr", "at least one target address is required"})
	}
	if strings.TrimSpace(t.Database) == "" {
		issues = append(issues, Issue{SeverityError, "target.database", "target.database must not be empty"})
	}

	return issues
}

func validateLoad(l Load) []Issue {
	var issues []Issue

	if l.ChunkSize < 0 {
		issues = append(issues, Issue{SeverityError, "load.chunk_size", "chunk_size must not be negative"})
	}
	if l.Limit < 0 {
		issues = append(issues, Issue{SeverityError, "load.limit", "limit must not be negative"})
	}
	if l.Workers < 0 {
		issues = append(issues, Issue{SeverityError, "load.workers", "workers must not be negative"})
	}

	switch l.DedupMode {
	case "", DedupNone:
		// nothing to check
	case DedupReplacing, DedupStaging:
		if l.UniqueKey == "" {
			issues = append(issues, Issue{
				SeverityError, "load.unique_key",
				fmt.Sprintf("dedup_mode=%s requires a unique_key", l.DedupMode),
			})
		}
		if l.VersionColumn == "" {
			issues = append(issues, Issue{
				SeverityWarning, "load.version_column",
				fmt.Sprintf("dedup_mode=%s without a version_column keeps an arbitrary row per key", l.DedupMode),
			})
		}
	default:
		issues = append(issues, Issue{
			SeverityError, "load.dedup_mode",
			fmt.Sprintf("unknown dedup_mode %q (want none|replacing|staging)", l.DedupMode),
		})
	}

	return issues
}
