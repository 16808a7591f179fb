// Package pipeline drives one table end to end: ensure the target schema,
// stream source chunks through normalization, write batches, and run the
// configured post-load dedup stage.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"colsync/internal/config"
	"colsync/internal/metrics"
	"colsync/internal/normalize"
	"colsync/internal/schema"
	"colsync/internal/source"
	"colsync/internal/target"
)

// InsertFn writes one batch of bound rows to the named target table. The
// indirection exists so tests can capture batches without a live store.
type InsertFn func(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

// Chunk write retry policy. Transient write failures get a bounded number of
// attempts with doubling backoff before the chunk is declared failed.
const (
	maxInsertAttempts = 3
	insertBackoffBase = 500 * time.Millisecond
)

// Ingestor loads tables from one source into the target store.
type Ingestor struct {
	Source  source.Conn
	Manager *target.Manager
	Insert  InsertFn
	Norm    *normalize.Normalizer
	Load    config.Load

	// PingTarget distinguishes fatal connectivity loss from recoverable
	// per-table failures after an error.
	PingTarget func(ctx context.Context) error

	// RetryBackoff overrides the first retry delay; zero means the default.
	RetryBackoff time.Duration
}

// Ingest runs the full load for one table and returns its outcome. It never
// returns an error; failures are classified into the outcome's status.
func (in *Ingestor) Ingest(ctx context.Context, desc *schema.TableDescriptor) schema.IngestionOutcome {
	out := schema.IngestionOutcome{
		Table:       desc.SourceQualifiedName(),
		TargetTable: desc.TargetQualifiedName(),
		Status:      schema.StatusSuccess,
	}
	start := time.Now()

	if err := in.run(ctx, desc, &out); err != nil {
		out.AddError(err.Error())
		out.Status = in.classify(ctx)
		log.Printf("pipeline: %s failed (%s): %v", desc.SourceQualifiedName(), out.Status, err)
	}

	metrics.RecordTable(desc.TargetTable, string(out.Status), out.RowsInserted, time.Since(start))
	return out
}

func (in *Ingestor) run(ctx context.Context, desc *schema.TableDescriptor, out *schema.IngestionOutcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	created, err := in.Manager.EnsureTable(ctx, desc, in.Load.DedupMode)
	if err != nil {
		return err
	}
	if in.Load.Truncate && !created {
		if err := in.Manager.Truncate(ctx, desc); err != nil {
			return err
		}
	}

	columns := desc.ColumnNames()
	tbl := target.Qualify(desc.TargetDatabase, desc.TargetTable)

	chunkNo := 0
	start := time.Now()
	err = in.Source.Stream(ctx, desc.SourceDatabase, desc.SourceTable, columns,
		in.Load.ChunkSize, in.Load.Limit, func(raw [][]any) error {
			// Cancellation takes effect between chunks, never mid-write.
			if err := ctx.Err(); err != nil {
				return err
			}
			chunkNo++
			rows := in.bindChunk(raw, desc)
			n, err := in.insertWithRetry(ctx, tbl, columns, rows)
			out.RowsInserted += n
			if err == nil {
				metrics.RecordChunks(desc.TargetTable, 1)
				rps := float64(out.RowsInserted) / time.Since(start).Seconds()
				log.Printf("pipeline: %s chunk #%d: inserted=%d total=%d rps=%.0f",
					desc.TargetTable, chunkNo, n, out.RowsInserted, rps)
			}
			return err
		})
	if err != nil {
		return err
	}

	switch in.Load.DedupMode {
	case config.DedupReplacing:
		if desc.UniqueKey != "" && desc.VersionColumn != "" {
			return in.Manager.ForceCompact(ctx, desc)
		}
	case config.DedupStaging:
		if desc.UniqueKey != "" {
			return in.Manager.ReconcileStaging(ctx, desc)
		}
	}
	return nil
}

// bindChunk normalizes a raw chunk, collapses duplicate keys within it, and
// binds cells to driver values.
func (in *Ingestor) bindChunk(raw [][]any, desc *schema.TableDescriptor) [][]any {
	cells := make([][]schema.Cell, len(raw))
	for i, r := range raw {
		cells[i] = in.Norm.Row(r, desc)
	}
	if in.Load.DedupMode != config.DedupNone && desc.UniqueKey != "" {
		cells = dedupRows(cells, desc)
	}

	rows := make([][]any, len(cells))
	for i, cr := range cells {
		bound := make([]any, len(cr))
		for j, c := range cr {
			bound[j] = c.Bind(desc.Columns[j].Target)
		}
		rows[i] = bound
	}
	return rows
}

func (in *Ingestor) insertWithRetry(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	backoff := in.RetryBackoff
	if backoff <= 0 {
		backoff = insertBackoffBase
	}
	var lastErr error
	for attempt := 1; attempt <= maxInsertAttempts; attempt++ {
		n, err := in.Insert(ctx, table, columns, rows)
		if err == nil {
			return n, nil
		}
		lastErr = err
		if attempt == maxInsertAttempts {
			break
		}
		log.Printf("pipeline: insert into %s failed (attempt %d/%d), retrying in %s: %v",
			table, attempt, maxInsertAttempts, backoff, err)
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return 0, fmt.Errorf("pipeline: insert into %s: %w", table, lastErr)
}

// classify decides whether a table failure should abort the run. Loss of
// either connection is fatal; anything else is scoped to the table.
func (in *Ingestor) classify(ctx context.Context) schema.Status {
	if ctx.Err() != nil {
		return schema.StatusFatal
	}
	if err := in.Source.Ping(ctx); err != nil {
		return schema.StatusFatal
	}
	if in.PingTarget != nil {
		if err := in.PingTarget(ctx); err != nil {
			return schema.StatusFatal
		}
	}
	return schema.StatusRecoverable
}

// dedupRows keeps one row per unique key within a chunk, preferring the
// highest version. Order of surviving rows is preserved.
func dedupRows(rows [][]schema.Cell, desc *schema.TableDescriptor) [][]schema.Cell {
	keyIdx := desc.ColumnIndex(desc.UniqueKey)
	if keyIdx < 0 {
		return rows
	}
	verIdx := -1
	if desc.VersionColumn != "" {
		verIdx = desc.ColumnIndex(desc.VersionColumn)
	}

	kept := make(map[string]int, len(rows))
	out := rows[:0]
	for _, row := range rows {
		k := row[keyIdx].Key()
		at, seen := kept[k]
		if !seen {
			kept[k] = len(out)
			out = append(out, row)
			continue
		}
		if verIdx >= 0 && row[verIdx].Compare(out[at][verIdx]) > 0 {
			out[at] = row
		}
	}
	return out
}
