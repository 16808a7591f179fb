// Package source contains the source-agnostic contracts for reading
// relational databases: a backend registry, the Conn interface every backend
// implements, and the descriptor builder shared by all of them.
//
// Backends register themselves at init time (see source/all); callers open a
// connection by kind and remain backend-agnostic afterwards. Access is
// strictly read-only: no backend ever mutates the source.
package source

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
}

// Column is one column as reported by source metadata, before type mapping.
type Column struct {
	Name     string
	DataType string // raw type string, backend-specific
	Nullable bool   // from authoritative catalog metadata, not the driver
}

// Conn is a read-only connection to a relational source.
//
// Introspect returns (nil, nil, nil) when the table does not exist; callers
// must treat that as a skip, not a failure. An unreachable source surfaces
// as an error, which the run controller classifies as fatal.
type Conn interface {
	Ping(ctx context.Context) error

	// Tables lists base tables in the given database/schema.
	Tables(ctx context.Context, db string) ([]string, error)

	// Introspect reads column metadata and the primary-key column set.
	// Primary-key discovery failure degrades to no primary key (logged by
	// the backend), never to an error.
	Introspect(ctx context.Context, db, table string) ([]Column, []string, error)

	// Stream reads the table through a server-side cursor in chunks of at
	// most chunkSize rows, invoking emit per chunk. limit > 0 caps the total
	// rows read. The table is never materialized in full.
	Stream(ctx context.Context, db, table string, columns []string, chunkSize, limit int, emit func(rows [][]any) error) error

	// CountRows returns the current row count, used by the post-run
	// reconciliation pass.
	CountRows(ctx context.Context, db, table string) (int64, error)

	Close() error
}

// Factory builds a Conn for a Config.
type Factory func(ctx context.Context, cfg Config) (Conn, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) a backend factory for the given kind.
// Typically called from backend packages' init() functions.
func Register(kind string, fn Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = fn
}

// Open builds a Conn using the factory registered for cfg.Kind.
func Open(ctx context.Context, cfg Config) (Conn, error) {
	mu.RLock()
	fn, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported source.kind=%s", cfg.Kind)
	}
	return fn(ctx, cfg)
}

// ListKinds returns the registered backend kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
