package target

import (
	"context"
	"fmt"
	"strings"

	"colsync/internal/schema"
)

// ReconcileStaging collapses duplicate logical rows in the live table by
// ranking them into a fresh table and atomically swapping it in:
//
//  1. read the live table's sort key back from the catalog so the fresh
//     table is physically identical,
//  2. build <table>_tmp and fill it with the newest version of each unique
//     key (row_number over the version column, descending, NULLs last),
//  3. swap live and tmp in one RENAME statement, then drop the old data.
//
// Readers see either the full pre-swap table or the full post-swap table,
// never a partial state. The staging table is dropped up front in case a
// previous run died mid-reconcile.
func (m *Manager) ReconcileStaging(ctx context.Context, desc *schema.TableDescriptor) error {
	if desc.UniqueKey == "" {
		return fmt.Errorf("target: reconcile %s: no unique key configured", desc.TargetQualifiedName())
	}

	db := desc.TargetDatabase
	live := Qualify(db, desc.TargetTable)
	tmp := Qualify(db, desc.TargetTable+"_tmp")
	old := Qualify(db, desc.TargetTable+"_old")

	orderBy, err := m.client.QueryString(ctx,
		"SELECT sorting_key FROM system.tables WHERE database = ? AND name = ?",
		db, desc.TargetTable)
	if err != nil {
		return fmt.Errorf("target: read sort key of %s: %w", live, err)
	}
	if strings.TrimSpace(orderBy) == "" {
		orderBy = "tuple()"
	}

	for _, leftover := range []string{tmp, old} {
		if err := m.client.Exec(ctx, "DROP TABLE IF EXISTS "+leftover); err != nil {
			return fmt.Errorf("target: drop leftover %s: %w", leftover, err)
		}
	}

	cols := strings.Join(quoteAll(desc.ColumnNames()), ", ")

	createTmp := "CREATE TABLE " + tmp + " AS " + live + " ENGINE = MergeTree ORDER BY (" + orderBy + ")"
	if err := m.client.Exec(ctx, createTmp); err != nil {
		return fmt.Errorf("target: create staging %s: %w", tmp, err)
	}

	if err := m.client.Exec(ctx, rankInsertSQL(desc, tmp, live, cols)); err != nil {
		return fmt.Errorf("target: rank into %s: %w", tmp, err)
	}

	rename := "RENAME TABLE " + live + " TO " + old + ", " + tmp + " TO " + live
	if err := m.client.Exec(ctx, rename); err != nil {
		return fmt.Errorf("target: swap %s: %w", live, err)
	}

	if err := m.client.Exec(ctx, "DROP TABLE IF EXISTS "+old); err != nil {
		return fmt.Errorf("target: drop %s: %w", old, err)
	}
	return nil
}

func rankInsertSQL(desc *schema.TableDescriptor, tmp, live, cols string) string {
	keys := strings.Split(desc.UniqueKey, ",")
	for i, k := range keys {
		keys[i] = Ident(strings.TrimSpace(k))
	}
	partition := strings.Join(keys, ", ")

	// Without a version column every copy of a key is equivalent and any
	// winner will do; order by the key itself so the pick is deterministic.
	order := partition
	if desc.VersionColumn != "" {
		order = Ident(desc.VersionColumn) + " DESC NULLS LAST"
	}

	return "INSERT INTO " + tmp + " (" + cols + ")" +
		" SELECT " + cols + " FROM (" +
		"SELECT " + cols + ", row_number() OVER (PARTITION BY " + partition +
		" ORDER BY " + order + ") AS rn FROM " + live +
		") WHERE rn = 1"
}
