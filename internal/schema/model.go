// Package schema defines the descriptors shared by the introspection,
// normalization, and load stages: column/table descriptors built from source
// metadata, the normalized Cell value, and the per-run report structures.
//
// Descriptors are built once per table by the source backends and treated as
// read-only everywhere else; nothing downstream mutates them.
package schema

// Kind enumerates the canonical target column types.
type Kind uint8

const (
	KindString Kind = iota
	KindFixedString
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUInt8
	KindUInt16
	KindUInt32
	KindUInt64
	KindFloat32
	KindFloat64
	KindDecimal
	KindDate
	KindDateTime
	KindBool
)

// String returns the target store's spelling of the kind (without Nullable
// wrapping or type parameters).
func (k Kind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindFixedString:
		return "FixedString"
	case KindInt8:
		return "Int8"
	case KindInt16:
		return "Int16"
	case KindInt32:
		return "Int32"
	case KindInt64:
		return "Int64"
	case KindUInt8:
		return "UInt8"
	case KindUInt16:
		return "UInt16"
	case KindUInt32:
		return "UInt32"
	case KindUInt64:
		return "UInt64"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindDecimal:
		return "Decimal"
	case KindDate:
		return "Date"
	case KindDateTime:
		return "DateTime"
	case KindBool:
		return "Bool"
	default:
		return "String"
	}
}

// IsInteger reports whether the kind is a signed or unsigned integer type.
func (k Kind) IsInteger() bool {
	return k >= KindInt8 && k <= KindUInt64
}

// IsUnsigned reports whether the kind is one of the UInt variants.
func (k Kind) IsUnsigned() bool {
	return k >= KindUInt8 && k <= KindUInt64
}

// TargetType is a canonical target column type. Precision/Scale are only
// meaningful for KindDecimal; Length only for KindFixedString.
type TargetType struct {
	Kind      Kind
	Precision int
	Scale     int
	Length    int
}

// ColumnDescriptor describes one column as it travels from source to target.
type ColumnDescriptor struct {
	Name         string
	SourceType   string // raw type string as reported by the source
	Target       TargetType
	Nullable     bool
	IsPrimaryKey bool
}

// TableDescriptor describes one table to be ingested. Columns preserve the
// source's declared order. UniqueKey and VersionColumn are only consulted by
// the dedup logic and may be empty.
type TableDescriptor struct {
	SourceDatabase string
	SourceTable    string
	TargetDatabase string
	TargetTable    string

	Columns       []ColumnDescriptor
	PrimaryKey    []string
	UniqueKey     string
	VersionColumn string
}

// NewTableDescriptor builds a descriptor and enforces the primary-key
// invariant: a primary-key column is never nullable, regardless of what the
// source reported.
func NewTableDescriptor(srcDB, srcTable, tgtDB, tgtTable string, cols []ColumnDescriptor, pk []string) *TableDescriptor {
	pkSet := make(map[string]struct{}, len(pk))
	for _, name := range pk {
		pkSet[name] = struct{}{}
	}
	for i := range cols {
		if _, ok := pkSet[cols[i].Name]; ok {
			cols[i].IsPrimaryKey = true
			cols[i].Nullable = false
		}
	}
	return &TableDescriptor{
		SourceDatabase: srcDB,
		SourceTable:    srcTable,
		TargetDatabase: tgtDB,
		TargetTable:    tgtTable,
		Columns:        cols,
		PrimaryKey:     pk,
	}
}

// SourceQualifiedName returns "db.table" at the source.
func (t *TableDescriptor) SourceQualifiedName() string {
	if t.SourceDatabase == "" {
		return t.SourceTable
	}
	return t.SourceDatabase + "." + t.SourceTable
}

// TargetQualifiedName returns "db.table" at the target.
func (t *TableDescriptor) TargetQualifiedName() string {
	return t.TargetDatabase + "." + t.TargetTable
}

// ColumnNames returns the ordered column names.
func (t *TableDescriptor) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of the named column, or -1.
func (t *TableDescriptor) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}
