package normalize

import (
	"testing"
	"time"

	"colsync/internal/schema"
)

/*
TestToTime_Layouts verifies the accepted datetime string forms all parse to
the same wall-clock instant, with the timezone dropped rather than converted.
*/
func TestToTime_Layouts(t *testing.T) {
	t.Parallel()
	n := quiet(New(Config{}))
	c := col("ts", schema.KindDateTime, true)

	want := time.Date(2023, 7, 14, 9, 30, 0, 0, time.UTC)
	inputs := []string{
		"2023-07-14 09:30:00",
		"2023-07-14 09:30:00.123456",
		"2023-07-14T09:30:00",
		"2023-07-14T09:30:00Z",
		"2023-07-14T09:30:00+05:00", // zone dropped, wall clock kept
		"2023/07/14 09:30:00",
	}
	for _, in := range inputs {
		got := n.Normalize(in, c)
		if !got.Time.Equal(want) {
			t.Errorf("Normalize(%q) = %v; want %v", in, got.Time, want)
		}
	}
}

// Date-only layouts and Date columns truncate to midnight.
func TestToTime_DateTruncation(t *testing.T) {
	t.Parallel()
	n := quiet(New(Config{}))

	want := time.Date(2023, 7, 14, 0, 0, 0, 0, time.UTC)
	if got := n.Normalize("2023-07-14", col("d", schema.KindDateTime, true)); !got.Time.Equal(want) {
		t.Errorf("date-only string = %v; want %v", got.Time, want)
	}
	if got := n.Normalize("2023-07-14 09:30:00", col("d", schema.KindDate, true)); !got.Time.Equal(want) {
		t.Errorf("Date column keeps time = %v; want midnight", got.Time)
	}
}

// Native driver time.Time values keep their wall clock and lose their zone.
func TestToTime_NativeTime(t *testing.T) {
	t.Parallel()
	n := quiet(New(Config{}))

	loc := time.FixedZone("X", 3*3600)
	in := time.Date(2023, 7, 14, 9, 30, 0, 999, loc)
	got := n.Normalize(in, col("ts", schema.KindDateTime, true))
	want := time.Date(2023, 7, 14, 9, 30, 0, 0, time.UTC)
	if !got.Time.Equal(want) {
		t.Errorf("native = %v; want %v", got.Time, want)
	}
}

func TestToTime_Window(t *testing.T) {
	t.Parallel()
	n := quiet(New(Config{}))

	// Pre-epoch, nullable: null.
	if got := n.Normalize("1969-12-31 23:59:59", col("ts", schema.KindDateTime, true)); !got.IsNull() {
		t.Errorf("pre-window nullable = %+v; want null", got)
	}
	// Pre-epoch, non-nullable: clamp to the minimum.
	if got := n.Normalize("1969-12-31 23:59:59", col("ts", schema.KindDateTime, false)); !got.Time.Equal(DefaultMinTime) {
		t.Errorf("pre-window non-nullable = %v; want %v", got.Time, DefaultMinTime)
	}
	// Past the ceiling, non-nullable: clamp to the maximum.
	if got := n.Normalize("2200-01-01", col("ts", schema.KindDateTime, false)); !got.Time.Equal(DefaultMaxTime) {
		t.Errorf("post-window non-nullable = %v; want %v", got.Time, DefaultMaxTime)
	}
}

func TestToBool(t *testing.T) {
	t.Parallel()
	n := quiet(New(Config{}))
	c := col("b", schema.KindBool, true)

	for _, in := range []any{true, "1", "t", "TRUE", "y", "Yes", int64(5)} {
		if got := n.Normalize(in, c); got.Int != 1 {
			t.Errorf("Normalize(%v) = %+v; want 1", in, got)
		}
	}
	for _, in := range []any{false, "0", "f", "False", "N", "no", int64(0)} {
		if got := n.Normalize(in, c); got.Int != 0 || got.IsNull() {
			t.Errorf("Normalize(%v) = %+v; want 0", in, got)
		}
	}
	if got := n.Normalize("maybe", c); !got.IsNull() {
		t.Errorf("Normalize(maybe) = %+v; want null", got)
	}
}
