// Package mysql implements a MySQL source backend over database/sql.
//
// Column metadata comes from information_schema (column_type preserves
// modifiers such as "int(11) unsigned" and "tinyint(1)", which the type
// mapper needs). Streaming relies on the driver's unbuffered result sets:
// rows are fetched from the server as they are scanned, never materialized.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"colsync/internal/source"
)

func init() {
	source.Register("mysql", func(ctx context.Context, cfg source.Config) (source.Conn, error) {
		return open(ctx, cfg.DSN)
	})
}

// Conn is a read-only MySQL connection.
type Conn struct {
	db *sql.DB
}

func open(ctx context.Context, dsn string) (*Conn, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Conn{db: db}, nil
}

func (c *Conn) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }
func (c *Conn) Close() error                   { return c.db.Close() }

func (c *Conn) Tables(ctx context.Context, db string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`, db)
	if err != nil {
		return nil, fmt.Errorf("mysql: list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (c *Conn) Introspect(ctx context.Context, db, table string) ([]source.Column, []string, error) {
	// column_type rather than data_type: it carries width and signedness.
	rows, err := c.db.QueryContext(ctx, `
		SELECT column_name, column_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, db, table)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: introspect %s.%s: %w", db, table, err)
	}
	defer rows.Close()

	var cols []source.Column
	for rows.Next() {
		var name, colType, isNullable string
		if err := rows.Scan(&name, &colType, &isNullable); err != nil {
			return nil, nil, err
		}
		cols = append(cols, source.Column{
			Name:     name,
			DataType: colType,
			Nullable: isNullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if len(cols) == 0 {
		// Table not present at the source: a skip, not a failure.
		return nil, nil, nil
	}

	pk, err := c.primaryKey(ctx, db, table)
	if err != nil {
		// Degrade to "no primary key"; the sort-key derivation falls back.
		log.Printf("mysql: primary key discovery failed for %s.%s: %v", db, table, err)
		pk = nil
	}
	return cols, pk, nil
}

func (c *Conn) primaryKey(ctx context.Context, db, table string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND table_name = ? AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position`, db, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		pk = append(pk, name)
	}
	return pk, rows.Err()
}

func (c *Conn) Stream(ctx context.Context, db, table string, columns []string, chunkSize, limit int, emit func(rows [][]any) error) error {
	query := "SELECT " + identList(columns) + " FROM " + qualify(db, table)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("mysql: stream %s.%s: %w", db, table, err)
	}
	defer rows.Close()

	scan := source.NewScanChunk(len(columns))
	chunk := make([][]any, 0, chunkSize)
	for rows.Next() {
		if err := rows.Scan(scan.Ptrs()...); err != nil {
			return fmt.Errorf("mysql: scan %s.%s: %w", db, table, err)
		}
		chunk = append(chunk, scan.Row())
		if len(chunk) >= chunkSize {
			if err := emit(chunk); err != nil {
				return err
			}
			chunk = chunk[:0]
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("mysql: cursor %s.%s: %w", db, table, err)
	}
	if len(chunk) > 0 {
		return emit(chunk)
	}
	return nil
}

func (c *Conn) CountRows(ctx context.Context, db, table string) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+qualify(db, table)).Scan(&n)
	return n, err
}

func ident(name string) string { return source.QuoteIdent(name, '`', '`') }

func qualify(db, table string) string { return ident(db) + "." + ident(table) }

func identList(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += ident(c)
	}
	return out
}
