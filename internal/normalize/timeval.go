package normalize

import (
	"strings"
	"time"

	"colsync/internal/schema"
)

// truthy/falsy string forms accepted for boolean-ish columns.
var (
	truthy = map[string]struct{}{"1": {}, "t": {}, "true": {}, "y": {}, "yes": {}}
	falsy  = map[string]struct{}{"0": {}, "f": {}, "false": {}, "n": {}, "no": {}}
)

// toTime coerces raw into a timezone-naive datetime within the configured
// validity window. Out-of-window values are clamped on non-nullable columns
// and nulled on nullable ones. Zero-valued and pre-window dates count as
// invalid, not as year zero.
func (n *Normalizer) toTime(raw any, col schema.ColumnDescriptor) schema.Cell {
	var t time.Time
	switch v := raw.(type) {
	case time.Time:
		t = v
	case string:
		s := strings.TrimSpace(v)
		parsed, ok := parseTime(s)
		if !ok {
			n.OnQuality(col.Name, "not_datetime", s)
			return schema.Null()
		}
		t = parsed
	default:
		n.OnQuality(col.Name, "not_datetime", strOf(raw))
		return schema.Null()
	}

	if t.IsZero() {
		return schema.Null()
	}

	// The store is timezone-naive: keep the wall-clock components as written
	// and drop the zone.
	t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	if col.Target.Kind == schema.KindDate {
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}

	if t.Before(n.minTime) || t.After(n.maxTime) {
		n.OnQuality(col.Name, "datetime_out_of_range", t.Format("2006-01-02 15:04:05"))
		if col.Nullable {
			return schema.Null()
		}
		if t.Before(n.minTime) {
			return schema.TimeCell(n.minTime)
		}
		return schema.TimeCell(n.maxTime)
	}
	return schema.TimeCell(t)
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// toBool maps boolean-ish inputs onto 0/1 integers; the target column is the
// smallest integer type, never a native boolean.
func (n *Normalizer) toBool(raw any, col schema.ColumnDescriptor) schema.Cell {
	switch v := raw.(type) {
	case bool:
		if v {
			return schema.IntCell(1)
		}
		return schema.IntCell(0)
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		if _, ok := truthy[s]; ok {
			return schema.IntCell(1)
		}
		if _, ok := falsy[s]; ok {
			return schema.IntCell(0)
		}
		n.OnQuality(col.Name, "not_boolean", v)
		return schema.Null()
	default:
		if i, ok := asInt64(raw); ok {
			if i != 0 {
				return schema.IntCell(1)
			}
			return schema.IntCell(0)
		}
		n.OnQuality(col.Name, "not_boolean", strOf(raw))
		return schema.Null()
	}
}
