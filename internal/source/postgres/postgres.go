// Package postgres implements a Postgres source backend using pgx v5.
package postgres

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"colsync/internal/source"
)

func init() {
	source.Register("postgres", func(ctx context.Context, cfg source.Config) (source.Conn, error) {
		return open(ctx, cfg.DSN)
	})
}

// Conn is a read-only Postgres connection pool.
type Conn struct {
	pool *pgxpool.Pool
}

func open(ctx context.Context, dsn string) (*Conn, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Conn{pool: pool}, nil
}

func (c *Conn) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }
func (c *Conn) Close() error                   { c.pool.Close(); return nil }

// Tables lists base tables in the given schema.
func (c *Conn) Tables(ctx context.Context, db string) ([]string, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, db)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tables: %w", err)
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
	rows, err := c.pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, db, table)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: introspect %s.%s: %w", db, table, err)
	}
	defer rows.Close()

	var cols []source.Column
	for rows.Next() {
		var name, dataType, isNullable string
		if err := rows.Scan(&name, &dataType, &isNullable); err != nil {
			return nil, nil, err
		}
		cols = append(cols, source.Column{
			Name:     name,
			DataType: dataType,
			Nullable: isNullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if len(cols) == 0 {
		return nil, nil, nil
	}

	pk, err := c.primaryKey(ctx, db, table)
	if err != nil {
		log.Printf("postgres: primary key discovery failed for %s.%s: %v", db, table, err)
		pk = nil
	}
	return cols, pk, nil
}

func (c *Conn) primaryKey(ctx context.Context, db, table string) ([]string, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`, db, table)
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
	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("postgres: stream %s.%s: %w", db, table, err)
	}
	defer rows.Close()

	chunk := make([][]any, 0, chunkSize)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return fmt.Errorf("postgres: scan %s.%s: %w", db, table, err)
		}
		row := make([]any, len(vals))
		copy(row, vals)
		chunk = append(chunk, row)
		if len(chunk) >= chunkSize {
			if err := emit(chunk); err != nil {
				return err
			}
			chunk = chunk[:0]
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres: cursor %s.%s: %w", db, table, err)
	}
	if len(chunk) > 0 {
		return emit(chunk)
	}
	return nil
}

func (c *Conn) CountRows(ctx context.Context, db, table string) (int64, error) {
	var n int64
	err := c.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+qualify(db, table)).Scan(&n)
	return n, err
}

func ident(name string) string { return source.QuoteIdent(name, '"', '"') }

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
