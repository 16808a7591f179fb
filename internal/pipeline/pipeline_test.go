package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"colsync/internal/config"
	"colsync/internal/normalize"
	"colsync/internal/schema"
	"colsync/internal/source"
	"colsync/internal/target"
)

// fakeSource serves scripted rows in chunks, mimicking a cursor.
type fakeSource struct {
	rows    [][]any
	pingErr error
}

func (f *fakeSource) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeSource) Close() error                   { return nil }

func (f *fakeSource) Tables(ctx context.Context, db string) ([]string, error) {
	return nil, nil
}

func (f *fakeSource) Introspect(ctx context.Context, db, table string) ([]source.Column, []string, error) {
	return nil, nil, nil
}

func (f *fakeSource) CountRows(ctx context.Context, db, table string) (int64, error) {
	return int64(len(f.rows)), nil
}

func (f *fakeSource) Stream(ctx context.Context, db, table string, columns []string, chunkSize, limit int, emit func(rows [][]any) error) error {
	rows := f.rows
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	for len(rows) > 0 {
		n := chunkSize
		if n > len(rows) {
			n = len(rows)
		}
		if err := emit(rows[:n]); err != nil {
			return err
		}
		rows = rows[n:]
	}
	return nil
}

// fakeStore records DDL and captured batches behind the target.Client seam.
type fakeStore struct {
	execs    []string
	batches  [][][]any
	exists   bool
	failLeft int // Insert failures remaining
	pingErr  error
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeStore) Close() error                   { return nil }

func (f *fakeStore) Exec(ctx context.Context, query string, args ...any) error {
	f.execs = append(f.execs, query)
	return nil
}

func (f *fakeStore) QueryString(ctx context.Context, query string, args ...any) (string, error) {
	return "id", nil
}

func (f *fakeStore) QueryUInt64(ctx context.Context, query string, args ...any) (uint64, error) {
	if strings.Contains(query, "system.tables") && f.exists {
		return 1, nil
	}
	return 0, nil
}

func (f *fakeStore) Insert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if f.failLeft > 0 {
		f.failLeft--
		return 0, fmt.Errorf("connection reset")
	}
	f.batches = append(f.batches, rows)
	return int64(len(rows)), nil
}

func ordersDesc() *schema.TableDescriptor {
	desc := schema.NewTableDescriptor("shop", "orders", "raw", "shop_orders",
		[]schema.ColumnDescriptor{
			{Name: "id", Target: schema.TargetType{Kind: schema.KindInt64}},
			{Name: "status", Target: schema.TargetType{Kind: schema.KindString}, Nullable: true},
			{Name: "version", Target: schema.TargetType{Kind: schema.KindInt32}, Nullable: true},
		}, []string{"id"})
	return desc
}

func newIngestor(src *fakeSource, store *fakeStore, load config.Load) *Ingestor {
	norm := normalize.New(normalize.Config{})
	norm.OnQuality = func(column, reason, detail string) {}
	return &Ingestor{
		Source:       src,
		Manager:      target.NewManager(store),
		Insert:       store.Insert,
		Norm:         norm,
		Load:         load,
		PingTarget:   store.Ping,
		RetryBackoff: time.Millisecond,
	}
}

/*
TestIngest_Chunks verifies the streaming path: rows arrive in chunkSize
batches, totals add up, and values are bound to exact driver types.
*/
func TestIngest_Chunks(t *testing.T) {
	t.Parallel()

	src := &fakeSource{rows: [][]any{
		{int64(1), "new", int64(1)},
		{int64(2), "paid", int64(1)},
		{int64(3), "void", int64(1)},
		{int64(4), "new", int64(1)},
		{int64(5), "paid", int64(1)},
	}}
	store := &fakeStore{}
	ing := newIngestor(src, store, config.Load{ChunkSize: 2, DedupMode: config.DedupNone})

	out := ing.Ingest(context.Background(), ordersDesc())
	if out.Status != schema.StatusSuccess {
		t.Fatalf("status = %s, errors %v", out.Status, out.Errors)
	}
	if out.RowsInserted != 5 {
		t.Errorf("rows = %d; want 5", out.RowsInserted)
	}
	if len(store.batches) != 3 {
		t.Errorf("batches = %d; want 3", len(store.batches))
	}
	if v, ok := store.batches[0][0][0].(int64); !ok || v != 1 {
		t.Errorf("bound id = %T(%v); want int64(1)", store.batches[0][0][0], store.batches[0][0][0])
	}
	if v, ok := store.batches[0][0][2].(int32); !ok || v != 1 {
		t.Errorf("bound version = %T(%v); want int32(1)", store.batches[0][0][2], store.batches[0][0][2])
	}
}

// Repeated keys within a chunk collapse to the highest version before the
// batch is written.
func TestIngest_IntraChunkDedup(t *testing.T) {
	t.Parallel()

	src := &fakeSource{rows: [][]any{
		{int64(1), "new", int64(1)},
		{int64(1), "paid", int64(3)},
		{int64(1), "pending", int64(2)},
		{int64(2), "new", int64(1)},
	}}
	store := &fakeStore{}
	desc := ordersDesc()
	desc.UniqueKey = "id"
	desc.VersionColumn = "version"
	ing := newIngestor(src, store, config.Load{
		ChunkSize: 100, DedupMode: config.DedupStaging,
		UniqueKey: "id", VersionColumn: "version",
	})

	out := ing.Ingest(context.Background(), desc)
	if out.Status != schema.StatusSuccess {
		t.Fatalf("status = %s, errors %v", out.Status, out.Errors)
	}
	if out.RowsInserted != 2 {
		t.Errorf("rows = %d; want 2 after intra-chunk dedup", out.RowsInserted)
	}
	if got := store.batches[0][0][1].(string); got != "paid" {
		t.Errorf("survivor status = %q; want paid (version 3)", got)
	}

	// Staging mode must run the swap after the load.
	var sawRename bool
	for _, q := range store.execs {
		if strings.HasPrefix(q, "RENAME TABLE") {
			sawRename = true
		}
	}
	if !sawRename {
		t.Errorf("staging dedup did not swap; execs: %v", store.execs)
	}
}

// Replacing mode forces a synchronous compaction at the end of the load.
func TestIngest_ReplacingCompacts(t *testing.T) {
	t.Parallel()

	src := &fakeSource{rows: [][]any{{int64(1), "new", int64(1)}}}
	store := &fakeStore{}
	desc := ordersDesc()
	desc.UniqueKey = "id"
	desc.VersionColumn = "version"
	ing := newIngestor(src, store, config.Load{
		ChunkSize: 10, DedupMode: config.DedupReplacing,
		UniqueKey: "id", VersionColumn: "version",
	})

	out := ing.Ingest(context.Background(), desc)
	if out.Status != schema.StatusSuccess {
		t.Fatalf("status = %s, errors %v", out.Status, out.Errors)
	}
	var sawOptimize bool
	for _, q := range store.execs {
		if strings.HasPrefix(q, "OPTIMIZE TABLE") && strings.HasSuffix(q, "FINAL") {
			sawOptimize = true
		}
	}
	if !sawOptimize {
		t.Errorf("replacing dedup did not compact; execs: %v", store.execs)
	}
}

// Transient write failures are retried; the chunk lands on a later attempt.
func TestIngest_RetryThenSuccess(t *testing.T) {
	t.Parallel()

	src := &fakeSource{rows: [][]any{{int64(1), "new", int64(1)}}}
	store := &fakeStore{failLeft: 2}
	ing := newIngestor(src, store, config.Load{ChunkSize: 10, DedupMode: config.DedupNone})

	out := ing.Ingest(context.Background(), ordersDesc())
	if out.Status != schema.StatusSuccess {
		t.Fatalf("status = %s, errors %v", out.Status, out.Errors)
	}
	if out.RowsInserted != 1 || len(store.batches) != 1 {
		t.Errorf("rows=%d batches=%d; want 1/1", out.RowsInserted, len(store.batches))
	}
}

/*
TestIngest_Classification verifies the two failure tiers: a persistent write
error with both connections alive is recoverable; the same error with a dead
target connection is fatal.
*/
func TestIngest_Classification(t *testing.T) {
	t.Parallel()

	src := &fakeSource{rows: [][]any{{int64(1), "new", int64(1)}}}
	store := &fakeStore{failLeft: 1000}
	ing := newIngestor(src, store, config.Load{ChunkSize: 10, DedupMode: config.DedupNone})

	out := ing.Ingest(context.Background(), ordersDesc())
	if out.Status != schema.StatusRecoverable {
		t.Errorf("status = %s; want recoverable", out.Status)
	}
	if len(out.Errors) == 0 {
		t.Errorf("no errors recorded")
	}

	store = &fakeStore{failLeft: 1000, pingErr: fmt.Errorf("connection refused")}
	ing = newIngestor(src, store, config.Load{ChunkSize: 10, DedupMode: config.DedupNone})
	out = ing.Ingest(context.Background(), ordersDesc())
	if out.Status != schema.StatusFatal {
		t.Errorf("status = %s; want fatal when target is unreachable", out.Status)
	}
}

// Cancellation takes effect between chunks: once the context is canceled no
// further batch reaches the store and the table classifies fatal.
func TestIngest_CancelBetweenChunks(t *testing.T) {
	t.Parallel()

	src := &fakeSource{rows: [][]any{
		{int64(1), "new", int64(1)},
		{int64(2), "new", int64(1)},
		{int64(3), "new", int64(1)},
		{int64(4), "new", int64(1)},
	}}
	store := &fakeStore{}
	ing := newIngestor(src, store, config.Load{ChunkSize: 2, DedupMode: config.DedupNone})

	ctx, cancel := context.WithCancel(context.Background())
	ing.Insert = func(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
		defer cancel()
		return store.Insert(ctx, table, columns, rows)
	}

	out := ing.Ingest(ctx, ordersDesc())
	if out.Status != schema.StatusFatal {
		t.Errorf("status = %s; want fatal on canceled context", out.Status)
	}
	if len(store.batches) != 1 {
		t.Errorf("batches = %d; want 1 (second chunk must not be written)", len(store.batches))
	}
	if out.RowsInserted != 2 {
		t.Errorf("rows = %d; want 2", out.RowsInserted)
	}
}

// Truncate empties a pre-existing table before loading but skips tables this
// run just created.
func TestIngest_Truncate(t *testing.T) {
	t.Parallel()

	src := &fakeSource{rows: [][]any{{int64(1), "new", int64(1)}}}

	store := &fakeStore{exists: true}
	ing := newIngestor(src, store, config.Load{ChunkSize: 10, Truncate: true, DedupMode: config.DedupNone})
	if out := ing.Ingest(context.Background(), ordersDesc()); out.Status != schema.StatusSuccess {
		t.Fatalf("status = %s", out.Status)
	}
	var sawTruncate bool
	for _, q := range store.execs {
		if strings.HasPrefix(q, "TRUNCATE TABLE") {
			sawTruncate = true
		}
	}
	if !sawTruncate {
		t.Errorf("existing table not truncated; execs: %v", store.execs)
	}

	store = &fakeStore{exists: false}
	ing = newIngestor(src, store, config.Load{ChunkSize: 10, Truncate: true, DedupMode: config.DedupNone})
	if out := ing.Ingest(context.Background(), ordersDesc()); out.Status != schema.StatusSuccess {
		t.Fatalf("status = %s", out.Status)
	}
	for _, q := range store.execs {
		if strings.HasPrefix(q, "TRUNCATE TABLE") {
			t.Errorf("freshly created table was truncated; execs: %v", store.execs)
		}
	}
}
