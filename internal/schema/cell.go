package schema

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CellKind tags the variant held by a Cell.
type CellKind uint8

const (
	CellNull CellKind = iota
	CellInt
	CellFloat
	CellString
	CellDecimal // decimal kept in string form to avoid float precision loss
	CellTime
	CellBool
)

// Cell is a normalized value: a closed union over the kinds a target column
// can hold. Cells are produced only by the value normalizer; the load path
// never sees a raw driver value.
type Cell struct {
	Kind  CellKind
	Int   int64
	Float float64
	Str   string
	Time  time.Time
}

func Null() Cell                 { return Cell{Kind: CellNull} }
func IntCell(v int64) Cell       { return Cell{Kind: CellInt, Int: v} }
func FloatCell(v float64) Cell   { return Cell{Kind: CellFloat, Float: v} }
func StringCell(s string) Cell   { return Cell{Kind: CellString, Str: s} }
func DecimalCell(s string) Cell  { return Cell{Kind: CellDecimal, Str: s} }
func TimeCell(t time.Time) Cell  { return Cell{Kind: CellTime, Time: t} }
func BoolCell(b bool) Cell {
	if b {
		return Cell{Kind: CellBool, Int: 1}
	}
	return Cell{Kind: CellBool}
}

// IsNull reports whether the cell holds the null variant.
func (c Cell) IsNull() bool { return c.Kind == CellNull }

// Bind converts the cell into the exact Go value the target driver expects
// for column type t. Nulls bind to nil; the driver maps nil onto Nullable
// columns. Bind never fails: the normalizer has already guaranteed the cell
// is representable in t.
func (c Cell) Bind(t TargetType) any {
	if c.Kind == CellNull {
		return nil
	}
	switch t.Kind {
	case KindInt8:
		return int8(c.asInt())
	case KindInt16:
		return int16(c.asInt())
	case KindInt32:
		return int32(c.asInt())
	case KindInt64:
		return c.asInt()
	case KindUInt8:
		return uint8(c.asInt())
	case KindUInt16:
		return uint16(c.asInt())
	case KindUInt32:
		return uint32(c.asInt())
	case KindUInt64:
		return uint64(c.asInt())
	case KindFloat32:
		return float32(c.asFloat())
	case KindFloat64:
		return c.asFloat()
	case KindDecimal:
		if c.Kind == CellInt {
			return decimal.NewFromInt(c.Int)
		}
		d, err := decimal.NewFromString(c.Str)
		if err != nil {
			return decimal.Zero
		}
		return d
	case KindDate, KindDateTime:
		return c.Time
	case KindBool:
		return int8(c.asInt())
	default: // KindString, KindFixedString
		return c.asString()
	}
}

func (c Cell) asInt() int64 {
	switch c.Kind {
	case CellInt, CellBool:
		return c.Int
	case CellFloat:
		return int64(c.Float)
	default:
		return 0
	}
}

func (c Cell) asFloat() float64 {
	switch c.Kind {
	case CellFloat:
		return c.Float
	case CellInt, CellBool:
		return float64(c.Int)
	default:
		return 0
	}
}

func (c Cell) asString() string {
	switch c.Kind {
	case CellString, CellDecimal:
		return c.Str
	default:
		return ""
	}
}

// Compare orders two cells of the same logical column. Null sorts before
// every non-null value; mixed-kind comparisons fall back to numeric when both
// sides are numeric, otherwise to string form. Used by intra-batch dedup to
// rank version columns.
func (c Cell) Compare(o Cell) int {
	cn, on := c.IsNull(), o.IsNull()
	switch {
	case cn && on:
		return 0
	case cn:
		return -1
	case on:
		return 1
	}
	if c.numeric() && o.numeric() {
		if c.Kind == CellDecimal || o.Kind == CellDecimal {
			return c.asDecimal().Cmp(o.asDecimal())
		}
		a, b := c.asFloat(), o.asFloat()
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
	if c.Kind == CellTime && o.Kind == CellTime {
		return c.Time.Compare(o.Time)
	}
	return strings.Compare(c.key(), o.key())
}

func (c Cell) numeric() bool {
	return c.Kind == CellInt || c.Kind == CellFloat || c.Kind == CellBool || c.Kind == CellDecimal
}

func (c Cell) asDecimal() decimal.Decimal {
	switch c.Kind {
	case CellDecimal:
		d, err := decimal.NewFromString(c.Str)
		if err != nil {
			return decimal.Zero
		}
		return d
	case CellFloat:
		return decimal.NewFromFloat(c.Float)
	default:
		return decimal.NewFromInt(c.Int)
	}
}

// key returns a stable string form used for map keys and ordering.
func (c Cell) key() string {
	switch c.Kind {
	case CellNull:
		return "\x00"
	case CellString, CellDecimal:
		return c.Str
	case CellTime:
		return c.Time.Format(time.RFC3339Nano)
	case CellFloat:
		return decimal.NewFromFloat(c.Float).String()
	default:
		return decimal.NewFromInt(c.Int).String()
	}
}

// Key exposes the stable string form for use as a dedup map key.
func (c Cell) Key() string { return c.key() }
