package source

import (
	"context"
	"fmt"
	"strings"

	"colsync/internal/schema"
	"colsync/internal/typemap"
)

// DescribeOptions carries the naming and dedup settings applied to every
// descriptor built for a run.
type DescribeOptions struct {
	// SourceID prefixes the target table name: <SourceID>_<table>.
	SourceID string
	// TargetDatabase is the target database all tables land in.
	TargetDatabase string
	// UniqueKey/VersionColumn configure dedup; applied only when the table
	// actually has those columns.
	UniqueKey     string
	VersionColumn string
}

// TargetTableName applies the deterministic naming convention.
func TargetTableName(sourceID, table string) string {
	if sourceID == "" {
		return table
	}
	return sourceID + "_" + table
}

// Describe introspects one table and builds its descriptor. Returns
// (nil, nil) when the table does not exist at the source: callers treat that
// as a skip, not a failure.
func Describe(ctx context.Context, conn Conn, db, table string, opts DescribeOptions) (*schema.TableDescriptor, error) {
	cols, pk, err := conn.Introspect(ctx, db, table)
	if err != nil {
		return nil, fmt.Errorf("introspect %s.%s: %w", db, table, err)
	}
	if cols == nil {
		return nil, nil
	}

	descCols := make([]schema.ColumnDescriptor, len(cols))
	for i, c := range cols {
		descCols[i] = schema.ColumnDescriptor{
			Name:       c.Name,
			SourceType: c.DataType,
			Target:     typemap.Map(c.DataType),
			Nullable:   c.Nullable,
		}
	}

	desc := schema.NewTableDescriptor(
		db, table,
		opts.TargetDatabase, TargetTableName(opts.SourceID, table),
		descCols, pk,
	)

	if opts.UniqueKey != "" && desc.ColumnIndex(opts.UniqueKey) >= 0 {
		desc.UniqueKey = opts.UniqueKey
	}
	if opts.VersionColumn != "" && desc.ColumnIndex(opts.VersionColumn) >= 0 {
		desc.VersionColumn = opts.VersionColumn
	}
	return desc, nil
}

// ScanChunk is a helper for database/sql backends: it allocates scan targets
// for one row and unwraps them after Scan.
type ScanChunk struct {
	vals []any
	ptrs []any
}

// NewScanChunk sizes the scratch buffers for n columns.
func NewScanChunk(n int) *ScanChunk {
	c := &ScanChunk{vals: make([]any, n), ptrs: make([]any, n)}
	for i := range c.vals {
		c.ptrs[i] = &c.vals[i]
	}
	return c
}

// Ptrs returns the scan targets for sql.Rows.Scan.
func (c *ScanChunk) Ptrs() []any { return c.ptrs }

// Row copies the scanned values out; []byte is copied because drivers reuse
// the backing buffer between Next calls.
func (c *ScanChunk) Row() []any {
	row := make([]any, len(c.vals))
	for i, v := range c.vals {
		if b, ok := v.([]byte); ok {
			row[i] = string(b)
		} else {
			row[i] = v
		}
	}
	return row
}

// QuoteIdent quotes an identifier with the given quote bytes, doubling any
// embedded closing quote. Shared by the database/sql backends.
func QuoteIdent(name string, openQ, closeQ byte) string {
	escaped := strings.ReplaceAll(name, string(closeQ), string(closeQ)+string(closeQ))
	return string(openQ) + escaped + string(closeQ)
}
