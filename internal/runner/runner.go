// Package runner is the run controller: it discovers and filters tables,
// fans them out over a bounded worker pool, aggregates per-table outcomes
// into the run report, and stops the run on fatal connectivity loss.
package runner

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"colsync/internal/config"
	"colsync/internal/metrics"
	"colsync/internal/normalize"
	"colsync/internal/pipeline"
	"colsync/internal/schema"
	"colsync/internal/source"
	"colsync/internal/target"
)

// Runner executes one ingestion run.
type Runner struct {
	Config config.Config
	Source source.Conn
	Target target.Client

	// Audit makes the run plan-only: tables are introspected and their DDL
	// logged, but nothing is written to the target.
	Audit bool
}

// task is one (database, table) pair to ingest.
type task struct {
	db    string
	table string
}

func (t task) name() string {
	if t.db == "" {
		return t.table
	}
	return t.db + "." + t.table
}

// errFatal aborts the worker pool; per-table recoverable failures never
// surface as errors from a worker.
var errFatal = fmt.Errorf("fatal failure, aborting run")

// Run executes the full run and returns the report. The report is always
// complete and finishable, whatever happened; the caller decides the exit
// code from it.
func (r *Runner) Run(ctx context.Context) *schema.RunReport {
	report := &schema.RunReport{
		Job:       r.Config.Job,
		StartedAt: time.Now().UTC(),
	}
	defer report.Finish()

	if !r.Audit {
		mgr := target.NewManager(r.Target)
		if err := mgr.EnsureDatabase(ctx, r.Config.Target.Database); err != nil {
			report.Add(schema.IngestionOutcome{
				Table:  r.Config.Target.Database,
				Status: schema.StatusFatal,
				Errors: []string{err.Error()},
			})
			return report
		}
	}

	tasks, err := r.discover(ctx)
	if err != nil {
		report.Add(schema.IngestionOutcome{
			Table:  "discovery",
			Status: schema.StatusFatal,
			Errors: []string{err.Error()},
		})
		return report
	}
	log.Printf("runner: %d tables to ingest across %d databases",
		len(tasks), len(r.Config.Source.Databases))

	workers := r.Config.Load.Workers
	if workers < 1 {
		workers = 1
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, t := range tasks {
		g.Go(func() error {
			// A fatal outcome cancels the group context; tables queued
			// behind it must not be attempted or recorded.
			if gctx.Err() != nil {
				return nil
			}
			out := r.runTable(gctx, t)
			mu.Lock()
			report.Add(out)
			mu.Unlock()
			if out.Status == schema.StatusFatal {
				return errFatal
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("runner: %v", err)
		return report
	}

	if !r.Audit {
		r.reconcileCounts(ctx, report)
	}
	return report
}

// discover lists tables per source database and applies the include/exclude
// filters. Explicitly included tables missing from discovery are kept so the
// report records them as skipped.
func (r *Runner) discover(ctx context.Context) ([]task, error) {
	dbs := r.Config.Source.Databases
	if len(dbs) == 0 {
		// Schemaless sources (sqlite) list no databases.
		dbs = []string{""}
	}
	var tasks []task
	seen := make(map[string]struct{})
	for _, db := range dbs {
		tables, err := r.Source.Tables(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("list tables in %s: %w", db, err)
		}
		for _, t := range tables {
			seen[strings.ToLower(t)] = struct{}{}
			if r.Config.Tables.Match(t) {
				tasks = append(tasks, task{db: db, table: t})
			}
		}
	}
	// An include found in no database yields one skipped entry, not one per
	// database searched.
	for _, inc := range r.Config.Tables.Include {
		if _, ok := seen[strings.ToLower(inc)]; !ok {
			tasks = append(tasks, task{db: dbs[0], table: inc})
		}
	}
	return tasks, nil
}

func (r *Runner) runTable(ctx context.Context, t task) schema.IngestionOutcome {
	desc, err := source.Describe(ctx, r.Source, t.db, t.table, source.DescribeOptions{
		SourceID:       r.Config.Source.ID,
		TargetDatabase: r.Config.Target.Database,
		UniqueKey:      r.Config.Load.UniqueKey,
		VersionColumn:  r.Config.Load.VersionColumn,
	})
	if err != nil {
		out := schema.IngestionOutcome{Table: t.name()}
		out.AddError(err.Error())
		if r.Source.Ping(ctx) != nil || ctx.Err() != nil {
			out.Status = schema.StatusFatal
		} else {
			out.Status = schema.StatusRecoverable
		}
		return out
	}
	if desc == nil {
		log.Printf("runner: table %s not found at source, skipping", t.name())
		return schema.IngestionOutcome{
			Table:  t.name(),
			Status: schema.StatusSkipped,
		}
	}

	if r.Audit {
		log.Printf("runner: audit %s ->\n%s", desc.SourceQualifiedName(),
			target.CreateTableSQL(desc, r.Config.Load.DedupMode))
		return schema.IngestionOutcome{
			Table:       desc.SourceQualifiedName(),
			TargetTable: desc.TargetQualifiedName(),
			Status:      schema.StatusSuccess,
		}
	}

	minT, maxT, _ := r.Config.DateBounds()
	norm := normalize.New(normalize.Config{MinTime: minT, MaxTime: maxT})
	norm.OnQuality = func(column, reason, detail string) {
		log.Printf("quality: table=%s column=%s reason=%s detail=%s",
			desc.SourceQualifiedName(), column, reason, detail)
		metrics.RecordQuality(desc.TargetTable, reason)
	}

	ing := &pipeline.Ingestor{
		Source:     r.Source,
		Manager:    target.NewManager(r.Target),
		Insert:     r.Target.Insert,
		Norm:       norm,
		Load:       r.Config.Load,
		PingTarget: r.Target.Ping,
	}
	return ing.Ingest(ctx, desc)
}

// reconcileCounts compares source and target row counts for tables that
// loaded cleanly. Only meaningful for plain append runs: dedup modes and row
// limits legitimately change the target count.
func (r *Runner) reconcileCounts(ctx context.Context, report *schema.RunReport) {
	if r.Config.Load.DedupMode != config.DedupNone || r.Config.Load.Limit > 0 {
		return
	}
	mgr := target.NewManager(r.Target)
	for _, out := range report.Tables {
		if out.Status != schema.StatusSuccess {
			continue
		}
		db, tbl, ok := strings.Cut(out.Table, ".")
		if !ok {
			db, tbl = "", out.Table
		}
		srcRows, err := r.Source.CountRows(ctx, db, tbl)
		if err != nil {
			log.Printf("runner: source count for %s failed: %v", out.Table, err)
			continue
		}
		_, tgtTbl, _ := strings.Cut(out.TargetTable, ".")
		tgtRows, err := mgr.CountRows(ctx, &schema.TableDescriptor{
			TargetDatabase: r.Config.Target.Database,
			TargetTable:    tgtTbl,
		})
		if err != nil {
			log.Printf("runner: target count for %s failed: %v", out.TargetTable, err)
			continue
		}
		if srcRows != tgtRows {
			report.Discrepancies = append(report.Discrepancies, schema.Discrepancy{
				Table:      out.Table,
				SourceRows: srcRows,
				TargetRows: tgtRows,
			})
		}
	}
}
