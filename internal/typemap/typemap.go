// Package typemap maps raw source column type strings onto canonical target
// types. The mapping is a total function: unknown inputs fall back to String
// so that introspection never fails on an exotic column type.
//
// Inputs are the strings sources actually report, e.g. MySQL column_type
// values like "int(11) unsigned" or "decimal(10,2)", and Postgres data_type
// values like "character varying" or "timestamp without time zone".
package typemap

import (
	"strconv"
	"strings"

	"colsync/internal/schema"
)

// Default decimal shape when the source does not report precision/scale.
const (
	defaultDecimalPrecision = 18
	defaultDecimalScale     = 6
)

// Map converts a raw source type string into a TargetType. It is
// deterministic and never fails; unrecognized types map to String.
func Map(sourceType string) schema.TargetType {
	s := strings.ToLower(strings.TrimSpace(sourceType))
	if s == "" {
		return schema.TargetType{Kind: schema.KindString}
	}

	base, args := splitTypeArgs(s)
	unsigned := strings.Contains(s, "unsigned")

	switch base {
	case "tinyint":
		// tinyint(1) is MySQL's boolean marker; kept as Int8 for source
		// fidelity rather than a dedicated boolean type.
		if unsigned {
			return schema.TargetType{Kind: schema.KindUInt8}
		}
		return schema.TargetType{Kind: schema.KindInt8}
	case "smallint", "int2", "year":
		if unsigned {
			return schema.TargetType{Kind: schema.KindUInt16}
		}
		return schema.TargetType{Kind: schema.KindInt16}
	case "int", "integer", "mediumint", "int4", "serial":
		if unsigned {
			return schema.TargetType{Kind: schema.KindUInt32}
		}
		return schema.TargetType{Kind: schema.KindInt32}
	case "bigint", "int8", "bigserial":
		if unsigned {
			return schema.TargetType{Kind: schema.KindUInt64}
		}
		return schema.TargetType{Kind: schema.KindInt64}

	case "decimal", "numeric", "money", "smallmoney":
		p, sc := defaultDecimalPrecision, defaultDecimalScale
		if len(args) == 2 {
			p, sc = args[0], args[1]
		} else if len(args) == 1 {
			p, sc = args[0], 0
		}
		return schema.TargetType{Kind: schema.KindDecimal, Precision: p, Scale: sc}

	case "float", "real":
		// MySQL float(p) with p > 24 is stored as double; ignore that corner
		// and keep the narrow type, matching the source's declared intent.
		return schema.TargetType{Kind: schema.KindFloat32}
	case "double", "double precision":
		return schema.TargetType{Kind: schema.KindFloat64}

	case "date":
		return schema.TargetType{Kind: schema.KindDate}
	case "datetime", "timestamp", "datetime2", "smalldatetime",
		"timestamp without time zone", "timestamp with time zone", "timestamptz":
		return schema.TargetType{Kind: schema.KindDateTime}

	case "bool", "boolean", "bit":
		// Stored as the smallest integer type, never a native boolean.
		return schema.TargetType{Kind: schema.KindInt8}

	case "uuid":
		return schema.TargetType{Kind: schema.KindFixedString, Length: 36}

	case "char", "character", "nchar", "bpchar":
		// Fixed width only pays off for short columns; wide or unknown
		// lengths stay variable.
		if len(args) == 1 && args[0] > 0 && args[0] <= 255 {
			return schema.TargetType{Kind: schema.KindFixedString, Length: args[0]}
		}
		return schema.TargetType{Kind: schema.KindString}
	}

	// Everything else (varchar/char/text families, json, enum, set, blobs,
	// binary, time-of-day, intervals, arrays, ...) lands in String.
	return schema.TargetType{Kind: schema.KindString}
}

// splitTypeArgs splits "decimal(10,2) unsigned" into ("decimal", [10 2]).
// Types without parentheses return the token before any space, except for
// multi-word Postgres names which are matched whole by the caller.
func splitTypeArgs(s string) (string, []int) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		// Multi-word names ("double precision", "timestamp without time
		// zone") must survive intact; only strip a trailing "unsigned" or
		// "zerofill" modifier.
		base := strings.TrimSuffix(s, " zerofill")
		base = strings.TrimSuffix(base, " unsigned")
		return strings.TrimSpace(base), nil
	}
	base := strings.TrimSpace(s[:open])
	closeIdx := strings.IndexByte(s, ')')
	if closeIdx < open {
		return base, nil
	}
	var args []int
	for _, part := range strings.Split(s[open+1:closeIdx], ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return base, nil
		}
		args = append(args, n)
	}
	return base, args
}
