package metrics

import (
	"sync"
	"testing"
	"time"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	counters   []counterCall
	histograms []histCall
	flushCount int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

func withBackend(t *testing.T, b Backend) {
	t.Helper()
	prev := backend
	SetBackend(b)
	t.Cleanup(func() { backend = prev })
}

func TestRecordTable(t *testing.T) {
	fb := &fakeBackend{}
	withBackend(t, fb)

	RecordTable("shop_users", "success", 120, 2*time.Second)

	if len(fb.counters) != 2 {
		t.Fatalf("counters = %d; want 2 (tables + rows)", len(fb.counters))
	}
	if fb.counters[0].name != "ingest_tables_total" || fb.counters[0].labels["status"] != "success" {
		t.Errorf("first counter = %+v", fb.counters[0])
	}
	if fb.counters[1].name != "ingest_rows_total" || fb.counters[1].delta != 120 {
		t.Errorf("rows counter = %+v", fb.counters[1])
	}
	if len(fb.histograms) != 1 || fb.histograms[0].value != 2.0 {
		t.Errorf("histograms = %+v", fb.histograms)
	}
}

// Zero-row and failed loads still count the table but not the rows.
func TestRecordTable_NoRows(t *testing.T) {
	fb := &fakeBackend{}
	withBackend(t, fb)

	RecordTable("shop_users", "recoverable", 0, time.Second)
	for _, c := range fb.counters {
		if c.name == "ingest_rows_total" {
			t.Errorf("row counter emitted for zero rows: %+v", c)
		}
	}
}

func TestRecordChunks_IgnoresNonPositive(t *testing.T) {
	fb := &fakeBackend{}
	withBackend(t, fb)

	RecordChunks("t", 0)
	RecordChunks("t", -4)
	if len(fb.counters) != 0 {
		t.Errorf("counters = %+v; want none", fb.counters)
	}
	RecordChunks("t", 2)
	if len(fb.counters) != 1 || fb.counters[0].delta != 2 {
		t.Errorf("counters = %+v; want one with delta 2", fb.counters)
	}
}

// SetBackend(nil) keeps the current backend; Flush reaches the installed one.
func TestSetBackend_NilKeepsCurrent(t *testing.T) {
	fb := &fakeBackend{}
	withBackend(t, fb)

	SetBackend(nil)
	if err := Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if fb.flushCount != 1 {
		t.Errorf("flushCount = %d; want 1", fb.flushCount)
	}
}
