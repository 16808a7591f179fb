package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"colsync/internal/schema"
)

// intRange returns the inclusive bounds for an integer kind. UInt64 is capped
// at the int64 carrier's maximum; values past 2^63-1 in source data are
// clamped like any other overflow.
func intRange(k schema.Kind) (int64, int64) {
	switch k {
	case schema.KindInt8, schema.KindBool:
		return math.MinInt8, math.MaxInt8
	case schema.KindInt16:
		return math.MinInt16, math.MaxInt16
	case schema.KindInt32:
		return math.MinInt32, math.MaxInt32
	case schema.KindUInt8:
		return 0, math.MaxUint8
	case schema.KindUInt16:
		return 0, math.MaxUint16
	case schema.KindUInt32:
		return 0, math.MaxUint32
	case schema.KindUInt64:
		return 0, math.MaxInt64
	default:
		return math.MinInt64, math.MaxInt64
	}
}

// toInteger coerces raw into the column's integer width. Integer-valued
// floats and decimal strings collapse to integer. Out-of-range values are
// clamped on non-nullable columns and nulled on nullable ones; both are
// data-quality events, not errors.
func (n *Normalizer) toInteger(raw any, col schema.ColumnDescriptor) schema.Cell {
	v, ok := asInt64(raw)
	if !ok {
		n.OnQuality(col.Name, "not_integer", strOf(raw))
		return schema.Null()
	}
	lo, hi := intRange(col.Target.Kind)
	if v < lo || v > hi {
		n.OnQuality(col.Name, "int_out_of_range", strconv.FormatInt(v, 10))
		if col.Nullable {
			return schema.Null()
		}
		if v < lo {
			return schema.IntCell(lo)
		}
		return schema.IntCell(hi)
	}
	return schema.IntCell(v)
}

func (n *Normalizer) toFloat(raw any, col schema.ColumnDescriptor) schema.Cell {
	switch t := raw.(type) {
	case float64:
		return schema.FloatCell(t)
	case float32:
		return schema.FloatCell(float64(t))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			n.OnQuality(col.Name, "not_float", t)
			return schema.Null()
		}
		return schema.FloatCell(f)
	case bool:
		if t {
			return schema.FloatCell(1)
		}
		return schema.FloatCell(0)
	default:
		if v, ok := asInt64(raw); ok {
			return schema.FloatCell(float64(v))
		}
		n.OnQuality(col.Name, "not_float", strOf(raw))
		return schema.Null()
	}
}

// toDecimal keeps non-integer decimals in string form to avoid precision
// loss through float64. A decimal with zero fractional scale collapses to
// integer.
func (n *Normalizer) toDecimal(raw any, col schema.ColumnDescriptor) schema.Cell {
	var d decimal.Decimal
	switch t := raw.(type) {
	case string:
		var err error
		d, err = decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			n.OnQuality(col.Name, "not_decimal", t)
			return schema.Null()
		}
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return schema.Null()
		}
		d = decimal.NewFromFloat(t)
	case float32:
		d = decimal.NewFromFloat32(t)
	default:
		if v, ok := asInt64(raw); ok {
			return schema.IntCell(v)
		}
		n.OnQuality(col.Name, "not_decimal", strOf(raw))
		return schema.Null()
	}
	if d.IsInteger() {
		if i64, ok := decimalToInt64(d); ok {
			return schema.IntCell(i64)
		}
	}
	return schema.DecimalCell(d.String())
}

var (
	maxInt64Dec = decimal.NewFromInt(math.MaxInt64)
	minInt64Dec = decimal.NewFromInt(math.MinInt64)
)

func decimalToInt64(d decimal.Decimal) (int64, bool) {
	if d.Cmp(minInt64Dec) < 0 || d.Cmp(maxInt64Dec) > 0 {
		return 0, false
	}
	return d.IntPart(), true
}

// asInt64 extracts an integer from the common driver value shapes.
// Integer-valued floats and numeric strings collapse; anything with a
// fractional part does not qualify.
func asInt64(raw any) (int64, bool) {
	switch t := raw.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int16:
		return int64(t), true
	case int8:
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return math.MaxInt64, true
		}
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint8:
		return int64(t), true
	case uint:
		if uint64(t) > math.MaxInt64 {
			return math.MaxInt64, true
		}
		return int64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case float64:
		if t != math.Trunc(t) || t < math.MinInt64 || t >= math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case float32:
		return asInt64(float64(t))
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		// "123.0" and scientific forms collapse when integer-valued.
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return asInt64(f)
		}
		return 0, false
	default:
		return 0, false
	}
}

// strOf renders a raw value for quality-event detail, truncated so one bad
// blob cannot flood the log.
func strOf(raw any) string {
	s := fmt.Sprintf("%v", raw)
	if len(s) > 64 {
		s = s[:64]
	}
	return s
}
