package normalize

import (
	"math"
	"testing"

	"colsync/internal/schema"
)

/*
TestToInteger_WidthClamp verifies overflow handling per integer width:
non-nullable columns clamp to the nearest bound, nullable ones go null.
*/
func TestToInteger_WidthClamp(t *testing.T) {
	t.Parallel()
	n := quiet(New(Config{}))

	cases := []struct {
		kind     schema.Kind
		in       int64
		wantKeep int64 // non-nullable result
	}{
		{schema.KindInt8, 200, 127},
		{schema.KindInt8, -200, -128},
		{schema.KindUInt8, 300, 255},
		{schema.KindUInt8, -1, 0},
		{schema.KindInt16, 70000, 32767},
		{schema.KindUInt16, 70000, 65535},
		{schema.KindInt32, math.MaxInt64, math.MaxInt32},
		{schema.KindUInt32, -5, 0},
	}
	for _, tc := range cases {
		got := n.Normalize(tc.in, col("c", tc.kind, false))
		if got.Int != tc.wantKeep {
			t.Errorf("clamp %d into %v = %+v; want %d", tc.in, tc.kind, got, tc.wantKeep)
		}
		got = n.Normalize(tc.in, col("c", tc.kind, true))
		if !got.IsNull() {
			t.Errorf("nullable %d into %v = %+v; want null", tc.in, tc.kind, got)
		}
	}
}

// In-range values pass through unchanged for every driver integer shape.
func TestToInteger_Shapes(t *testing.T) {
	t.Parallel()
	n := quiet(New(Config{}))
	c := col("c", schema.KindInt64, true)

	for _, raw := range []any{int64(7), int(7), int32(7), int16(7), int8(7), uint64(7), uint(7), float64(7), "7", "7.0", " 7 "} {
		got := n.Normalize(raw, c)
		if got.Int != 7 {
			t.Errorf("Normalize(%T %v) = %+v; want 7", raw, raw, got)
		}
	}

	// Fractional values do not silently truncate into integers.
	if got := n.Normalize(7.5, c); !got.IsNull() {
		t.Errorf("Normalize(7.5) = %+v; want null", got)
	}
	if got := n.Normalize("7.5", c); !got.IsNull() {
		t.Errorf("Normalize(\"7.5\") = %+v; want null", got)
	}
}

/*
TestToDecimal_Collapse verifies the decimal rules: integer-valued decimals
collapse to integer cells, fractional ones stay in string form (no float64
round trip), and unparseable input degrades to null.
*/
func TestToDecimal_Collapse(t *testing.T) {
	t.Parallel()
	n := quiet(New(Config{}))
	c := col("amount", schema.KindDecimal, true)

	if got := n.Normalize("1500.00", c); got.Kind != schema.CellInt || got.Int != 1500 {
		t.Errorf("1500.00 = %+v; want integer 1500", got)
	}
	if got := n.Normalize("1500.25", c); got.Kind != schema.CellDecimal || got.Str != "1500.25" {
		t.Errorf("1500.25 = %+v; want decimal string", got)
	}
	// Digits beyond float64 mantissa precision survive exactly.
	long := "12345678901234567890.12"
	if got := n.Normalize(long, c); got.Str != long {
		t.Errorf("long decimal = %q; want %q", got.Str, long)
	}
	if got := n.Normalize("12,50", c); !got.IsNull() {
		t.Errorf("garbage decimal = %+v; want null", got)
	}
	if got := n.Normalize(int64(42), c); got.Kind != schema.CellInt || got.Int != 42 {
		t.Errorf("int into decimal = %+v; want 42", got)
	}
}

func TestToFloat(t *testing.T) {
	t.Parallel()
	n := quiet(New(Config{}))
	c := col("f", schema.KindFloat64, true)

	if got := n.Normalize("3.25", c); got.Float != 3.25 {
		t.Errorf("3.25 = %+v", got)
	}
	if got := n.Normalize(true, c); got.Float != 1 {
		t.Errorf("true = %+v; want 1", got)
	}
	if got := n.Normalize("inf", c); !got.IsNull() {
		t.Errorf("inf = %+v; want null", got)
	}
	if got := n.Normalize(math.NaN(), c); !got.IsNull() {
		t.Errorf("NaN = %+v; want null", got)
	}
}
