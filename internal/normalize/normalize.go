// Package normalize converts raw driver values into canonical Cells.
//
// Normalize is pure and total: it never returns an error. Inputs that cannot
// be represented in the column's target type degrade to null, and null
// results on non-nullable columns are substituted with a type-appropriate
// default. Every such degradation is reported through the quality hook as a
// data-quality event, not an error; ingestion must not stop for per-cell
// anomalies.
package normalize

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"

	"colsync/internal/schema"
)

// Placeholder written into non-nullable text columns whose value normalized
// to null. Primary-key text columns receive a synthesized unique placeholder
// instead, to avoid key collisions.
const textPlaceholder = "N/A"

// Default datetime validity window. The lower bound rejects pre-epoch and
// all-zero dates; the upper bound is the DateTime ceiling of the target
// store. Both are overridable via Config.
var (
	DefaultMinTime = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	DefaultMaxTime = time.Date(2105, 12, 31, 23, 59, 59, 0, time.UTC)
)

// timeLayouts is the fixed, ordered list of accepted datetime string formats.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

// nullSentinels are string values treated as null regardless of column type.
// Matched case-insensitively after trimming.
var nullSentinels = map[string]struct{}{
	"":     {},
	"null": {},
	"none": {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"nat":  {},
}

// Config bounds the datetime validity window.
type Config struct {
	MinTime time.Time
	MaxTime time.Time
}

// Normalizer applies the normalization rules for one run. The zero value is
// not usable; construct with New.
type Normalizer struct {
	minTime time.Time
	maxTime time.Time

	// OnQuality receives data-quality events (clamped ints, re-encoded text,
	// out-of-range dates, ...). Defaults to a log line.
	OnQuality func(column, reason, detail string)

	pkSeq uint64 // monotonically increasing, feeds placeholder synthesis
}

// New returns a Normalizer with the given bounds; zero bounds fall back to
// the package defaults.
func New(cfg Config) *Normalizer {
	n := &Normalizer{minTime: cfg.MinTime, maxTime: cfg.MaxTime}
	if n.minTime.IsZero() {
		n.minTime = DefaultMinTime
	}
	if n.maxTime.IsZero() {
		n.maxTime = DefaultMaxTime
	}
	n.OnQuality = func(column, reason, detail string) {
		log.Printf("quality: column=%s reason=%s detail=%s", column, reason, detail)
	}
	return n
}

// Row normalizes a full driver row aligned to the descriptor's columns.
func (n *Normalizer) Row(raw []any, desc *schema.TableDescriptor) []schema.Cell {
	out := make([]schema.Cell, len(desc.Columns))
	for i := range desc.Columns {
		var v any
		if i < len(raw) {
			v = raw[i]
		}
		out[i] = n.Normalize(v, desc.Columns[i])
	}
	return out
}

// Normalize converts one raw cell. It is total: every input produces a valid
// Cell for the column's target type.
func (n *Normalizer) Normalize(raw any, col schema.ColumnDescriptor) schema.Cell {
	c := n.normalize(raw, col)
	if c.IsNull() && !col.Nullable {
		return n.nonNullDefault(col)
	}
	return c
}

func (n *Normalizer) normalize(raw any, col schema.ColumnDescriptor) schema.Cell {
	if raw == nil {
		return schema.Null()
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	if s, ok := raw.(string); ok {
		if isNullSentinel(s) {
			return schema.Null()
		}
	}
	if f, ok := raw.(float64); ok && math.IsNaN(f) {
		return schema.Null()
	}

	switch col.Target.Kind {
	case schema.KindInt8, schema.KindInt16, schema.KindInt32, schema.KindInt64,
		schema.KindUInt8, schema.KindUInt16, schema.KindUInt32, schema.KindUInt64:
		return n.toInteger(raw, col)
	case schema.KindFloat32, schema.KindFloat64:
		return n.toFloat(raw, col)
	case schema.KindDecimal:
		return n.toDecimal(raw, col)
	case schema.KindDate, schema.KindDateTime:
		return n.toTime(raw, col)
	case schema.KindBool:
		return n.toBool(raw, col)
	default:
		return n.toText(raw, col)
	}
}

// nonNullDefault substitutes the type-appropriate default for a non-nullable
// column whose value normalized to null.
func (n *Normalizer) nonNullDefault(col schema.ColumnDescriptor) schema.Cell {
	switch col.Target.Kind {
	case schema.KindFloat32, schema.KindFloat64:
		return schema.FloatCell(0)
	case schema.KindDate, schema.KindDateTime:
		return schema.TimeCell(n.minTime)
	case schema.KindString, schema.KindFixedString:
		if col.IsPrimaryKey {
			return schema.StringCell(n.syntheticKey(col.Name))
		}
		return schema.StringCell(textPlaceholder)
	default:
		// all integer kinds, decimal, bool
		return schema.IntCell(0)
	}
}

// syntheticKey builds a placeholder guaranteed unique within the process: a
// hash for spread plus the raw sequence number so two calls can never
// collide even in the (astronomically unlikely) event of a hash collision.
func (n *Normalizer) syntheticKey(column string) string {
	seq := atomic.AddUint64(&n.pkSeq, 1)
	h := xxh3.HashString(column + ":" + strconv.FormatUint(seq, 10))
	return fmt.Sprintf("na_%08x_%d", uint32(h), seq)
}

func isNullSentinel(s string) bool {
	t := strings.TrimSpace(s)
	if len(t) > 4 {
		// Zero-valued dates ("0000-00-00", "0000-00-00 00:00:00").
		if strings.HasPrefix(t, "0000-00-00") {
			return true
		}
		return false
	}
	_, ok := nullSentinels[strings.ToLower(t)]
	return ok
}
