package target

import (
	"context"
	"fmt"
	"log"
	"strings"

	"colsync/internal/config"
	"colsync/internal/schema"
)

// Manager issues DDL against the target store. All statements it generates
// are exercised through the Client seam so tests can assert the exact SQL.
type Manager struct {
	client Client
}

// NewManager returns a Manager bound to the given client.
func NewManager(c Client) *Manager {
	return &Manager{client: c}
}

// EnsureDatabase creates the target database if it does not exist.
func (m *Manager) EnsureDatabase(ctx context.Context, db string) error {
	return m.client.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+Ident(db))
}

// TableExists reports whether the target table is present.
func (m *Manager) TableExists(ctx context.Context, db, table string) (bool, error) {
	n, err := m.client.QueryUInt64(ctx,
		"SELECT count() FROM system.tables WHERE database = ? AND name = ?", db, table)
	if err != nil {
		return false, fmt.Errorf("target: table lookup %s.%s: %w", db, table, err)
	}
	return n > 0, nil
}

// EnsureTable creates the target table for desc if it is missing and reports
// whether it was created by this call. An existing table is left untouched;
// the target schema is not migrated in place.
func (m *Manager) EnsureTable(ctx context.Context, desc *schema.TableDescriptor, mode config.DedupMode) (bool, error) {
	if len(desc.Columns) == 0 {
		return false, fmt.Errorf("target: %s has no columns", desc.TargetQualifiedName())
	}
	exists, err := m.TableExists(ctx, desc.TargetDatabase, desc.TargetTable)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	ddl := CreateTableSQL(desc, mode)
	if err := m.client.Exec(ctx, ddl); err != nil {
		return false, fmt.Errorf("target: create %s: %w", desc.TargetQualifiedName(), err)
	}
	return true, nil
}

// Truncate empties the target table.
func (m *Manager) Truncate(ctx context.Context, desc *schema.TableDescriptor) error {
	return m.client.Exec(ctx, "TRUNCATE TABLE "+Qualify(desc.TargetDatabase, desc.TargetTable))
}

// ForceCompact synchronously runs the engine's background merge so that
// version-collapsing tables present a deduplicated view immediately.
func (m *Manager) ForceCompact(ctx context.Context, desc *schema.TableDescriptor) error {
	return m.client.Exec(ctx, "OPTIMIZE TABLE "+Qualify(desc.TargetDatabase, desc.TargetTable)+" FINAL")
}

// CountRows returns the current row count of the target table.
func (m *Manager) CountRows(ctx context.Context, desc *schema.TableDescriptor) (int64, error) {
	n, err := m.client.QueryUInt64(ctx, "SELECT count() FROM "+Qualify(desc.TargetDatabase, desc.TargetTable))
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// CreateTableSQL renders the CREATE TABLE statement for desc. The engine is
// ReplacingMergeTree(version) only when the dedup mode is "replacing" and the
// descriptor carries both a unique key and a version column; everything else
// gets a plain MergeTree.
func CreateTableSQL(desc *schema.TableDescriptor, mode config.DedupMode) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(Qualify(desc.TargetDatabase, desc.TargetTable))
	b.WriteString(" (\n")
	for i, col := range desc.Columns {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("    ")
		b.WriteString(Ident(col.Name))
		b.WriteString(" ")
		b.WriteString(RenderColumnType(col))
	}
	b.WriteString("\n) ENGINE = ")
	b.WriteString(engineFor(desc, mode))
	b.WriteString("\nORDER BY ")
	b.WriteString(sortKeyExpr(desc))
	return b.String()
}

func engineFor(desc *schema.TableDescriptor, mode config.DedupMode) string {
	if mode == config.DedupReplacing && desc.UniqueKey != "" && desc.VersionColumn != "" {
		return "ReplacingMergeTree(" + Ident(desc.VersionColumn) + ")"
	}
	return "MergeTree"
}

// SortKey derives the table's sort key. The key must consist of non-nullable
// columns only, so each candidate is checked and the fallbacks are logged:
// an explicit unique key wins if its columns are all non-nullable, then the
// primary key, then the first non-nullable column, then no key at all.
func SortKey(desc *schema.TableDescriptor) []string {
	if desc.UniqueKey != "" {
		if cols, ok := nonNullableAll(desc, strings.Split(desc.UniqueKey, ",")); ok {
			return cols
		}
		log.Printf("target: unique key %q of %s includes nullable columns, falling back",
			desc.UniqueKey, desc.TargetQualifiedName())
	}
	if len(desc.PrimaryKey) > 0 {
		if cols, ok := nonNullableAll(desc, desc.PrimaryKey); ok {
			return cols
		}
	}
	for _, col := range desc.Columns {
		if !col.Nullable {
			log.Printf("target: %s has no usable key, sorting by first non-nullable column %q",
				desc.TargetQualifiedName(), col.Name)
			return []string{col.Name}
		}
	}
	log.Printf("target: %s has no non-nullable columns, created without a sort key",
		desc.TargetQualifiedName())
	return nil
}

func sortKeyExpr(desc *schema.TableDescriptor) string {
	key := SortKey(desc)
	if len(key) == 0 {
		return "tuple()"
	}
	quoted := make([]string, len(key))
	for i, k := range key {
		quoted[i] = Ident(k)
	}
	if len(quoted) == 1 {
		return quoted[0]
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

func nonNullableAll(desc *schema.TableDescriptor, names []string) ([]string, bool) {
	out := make([]string, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		i := desc.ColumnIndex(name)
		if i < 0 || desc.Columns[i].Nullable {
			return nil, false
		}
		out = append(out, name)
	}
	return out, len(out) > 0
}

// RenderColumnType renders a column's target type, wrapping it in
// Nullable(...) when the source column admits NULL.
func RenderColumnType(col schema.ColumnDescriptor) string {
	t := renderType(col.Target)
	if col.Nullable {
		return "Nullable(" + t + ")"
	}
	return t
}

func renderType(t schema.TargetType) string {
	switch t.Kind {
	case schema.KindDecimal:
		return fmt.Sprintf("Decimal(%d, %d)", t.Precision, t.Scale)
	case schema.KindFixedString:
		return fmt.Sprintf("FixedString(%d)", t.Length)
	case schema.KindBool:
		// Booleans are carried as 0/1 integers end to end.
		return "Int8"
	default:
		return t.Kind.String()
	}
}
