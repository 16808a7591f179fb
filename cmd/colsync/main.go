package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"colsync/internal/config"
	"colsync/internal/metrics"
	"colsync/internal/metrics/prompush"
	"colsync/internal/runner"
	"colsync/internal/schema"
	"colsync/internal/source"
	"colsync/internal/target"

	// register all backends with the source factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "colsync/internal/source/all"
)

// main is the entry point for the ingestion binary. It loads the run config,
// applies flag overrides, optionally initializes a metrics backend, and
// executes the run. The process exit code follows the run report: 0 all
// tables succeeded, 1 recoverable failures, 2 fatal abort.
func main() {
	os.Exit(run())
}

// run carries the whole process so deferred connection closes execute before
// the exit code is raised.
func run() int {
	var (
		cfgPath           string
		sourceDSN         string
		databases         string
		include           string
		exclude           string
		chunkSize         int
		limit             int
		workers           int
		truncate          bool
		dedup             string
		uniqueKey         string
		versionColumn     string
		reportPath        string
		audit             bool
		validate          bool
		metricsBackendFlg string
		pushGatewayURLFlg string
	)

	flag.StringVar(&cfgPath, "config", "configs/sample.json", "run config JSON path")
	flag.StringVar(&sourceDSN, "source-dsn", "", "override source DSN")
	flag.StringVar(&databases, "databases", "", "override source databases (comma-separated)")
	flag.StringVar(&include, "tables", "", "only ingest these tables (comma-separated)")
	flag.StringVar(&exclude, "exclude", "", "skip these tables (comma-separated)")
	flag.IntVar(&chunkSize, "chunk-size", 0, "rows per read/write chunk (0 = config/default)")
	flag.IntVar(&limit, "limit", 0, "cap rows read per table (0 = all)")
	flag.IntVar(&workers, "workers", 0, "parallel table loads (0 = config/default)")
	flag.BoolVar(&truncate, "truncate", false, "truncate each target table before loading")
	flag.StringVar(&dedup, "dedup", "", "dedup mode: none, replacing, staging")
	flag.StringVar(&uniqueKey, "unique-key", "", "logical identity column for dedup")
	flag.StringVar(&versionColumn, "version-column", "", "recency column for dedup")
	flag.StringVar(&reportPath, "report", "", "run report JSON path")
	flag.BoolVar(&audit, "audit", false, "introspect and print planned DDL without loading")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		fatalf("load config: %v", err)
	}
	applyOverrides(&cfg, overrides{
		sourceDSN: sourceDSN, databases: databases,
		include: include, exclude: exclude,
		chunkSize: chunkSize, limit: limit, workers: workers,
		truncate: truncate, dedup: dedup,
		uniqueKey: uniqueKey, versionColumn: versionColumn,
		reportPath: reportPath,
		metricsBackend: metricsBackendFlg, pushgatewayURL: pushGatewayURLFlg,
	})

	issues := config.Validate(cfg)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s\n", iss.Error())
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("configuration is invalid: %v", cfgPath)
		return 2
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		return 0
	}

	setupMetrics(cfg, *verbose)

	ctx := context.Background()
	start := time.Now()

	src, err := source.Open(ctx, source.Config{Kind: cfg.Source.Kind, DSN: cfg.Source.DSN})
	if err != nil {
		return fatalRun(cfg, fmt.Errorf("connect source: %w", err))
	}
	defer src.Close()

	var tgt target.Client
	if !audit {
		tgt, err = target.Connect(ctx, target.Options{
			Addr:     cfg.Target.Addr,
			Database: cfg.Target.Database,
			Username: cfg.Target.Username,
			Password: cfg.Target.Password,
		})
		if err != nil {
			return fatalRun(cfg, fmt.Errorf("connect target: %w", err))
		}
		defer tgt.Close()
	}

	r := &runner.Runner{Config: cfg, Source: src, Target: tgt, Audit: audit}
	report := r.Run(ctx)

	if err := report.WriteFile(cfg.ReportPath); err != nil {
		log.Printf("write report %s: %v", cfg.ReportPath, err)
	}
	if err := metrics.Flush(); err != nil {
		log.Printf("metrics: flush error: %v", err)
	}

	if *verbose {
		log.Printf("completed in %s: %d rows, %d tables, %d failed",
			time.Since(start).Truncate(time.Millisecond),
			report.TotalRows, len(report.Tables), len(report.FailedTables))
	}
	return report.ExitCode()
}

type overrides struct {
	sourceDSN      string
	databases      string
	include        string
	exclude        string
	chunkSize      int
	limit          int
	workers        int
	truncate       bool
	dedup          string
	uniqueKey      string
	versionColumn  string
	reportPath     string
	metricsBackend string
	pushgatewayURL string
}

func applyOverrides(cfg *config.Config, o overrides) {
	if o.sourceDSN != "" {
		cfg.Source.DSN = o.sourceDSN
	}
	if o.databases != "" {
		cfg.Source.Databases = splitList(o.databases)
	}
	if o.include != "" {
		cfg.Tables.Include = splitList(o.include)
	}
	if o.exclude != "" {
		cfg.Tables.Exclude = splitList(o.exclude)
	}
	if o.chunkSize > 0 {
		cfg.Load.ChunkSize = o.chunkSize
	}
	if o.limit > 0 {
		cfg.Load.Limit = o.limit
	}
	if o.workers > 0 {
		cfg.Load.Workers = o.workers
	}
	if o.truncate {
		cfg.Load.Truncate = true
	}
	if o.dedup != "" {
		cfg.Load.DedupMode = config.DedupMode(o.dedup)
	}
	if o.uniqueKey != "" {
		cfg.Load.UniqueKey = o.uniqueKey
	}
	if o.versionColumn != "" {
		cfg.Load.VersionColumn = o.versionColumn
	}
	if o.reportPath != "" {
		cfg.ReportPath = o.reportPath
	}
	if o.metricsBackend != "" {
		cfg.MetricsBackend = o.metricsBackend
	}
	if o.pushgatewayURL != "" {
		cfg.PushgatewayURL = o.pushgatewayURL
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// setupMetrics decides the metrics backend: config → env → nop.
func setupMetrics(cfg config.Config, verbose bool) {
	backendName := cfg.MetricsBackend
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		gwURL := cfg.PushgatewayURL
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(cfg.Job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, cfg.Job)
		metrics.SetBackend(b)

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

// fatalRun records a connectivity failure in the report artifact and returns
// the exit code, so orchestration always finds a report even on early aborts.
func fatalRun(cfg config.Config, err error) int {
	log.Printf("%v", err)
	report := &schema.RunReport{
		Job:       cfg.Job,
		StartedAt: time.Now().UTC(),
	}
	report.Add(schema.IngestionOutcome{
		Table:  "connect",
		Status: schema.StatusFatal,
		Errors: []string{err.Error()},
	})
	report.Finish()
	if werr := report.WriteFile(cfg.ReportPath); werr != nil {
		log.Printf("write report %s: %v", cfg.ReportPath, werr)
	}
	return report.ExitCode()
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
