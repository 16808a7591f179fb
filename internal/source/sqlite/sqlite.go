// Package sqlite implements a SQLite source backend over database/sql.
//
// SQLite has no schemas in the information_schema sense; the db parameter is
// ignored for qualification and table discovery goes through sqlite_master.
// The backend exists mainly as an embedded source for tests and local
// pipeline rehearsal, mirroring the other backends' contract exactly.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"colsync/internal/source"
)

func init() {
	source.Register("sqlite", func(ctx context.Context, cfg source.Config) (source.Conn, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Conn is a read-only SQLite connection.
type Conn struct {
	db *sql.DB
}

// Open opens a SQLite database. Exported so tests can seed fixtures through
// the same handle they later stream from.
func Open(ctx context.Context, dsn string) (*Conn, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &Conn{db: db}, nil
}

// DB exposes the underlying handle for test fixture setup.
func (c *Conn) DB() *sql.DB { return c.db }

func (c *Conn) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }
func (c *Conn) Close() error                   { return c.db.Close() }

func (c *Conn) Tables(ctx context.Context, _ string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tables: %w", err)
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

func (c *Conn) Introspect(ctx context.Context, _, table string) ([]source.Column, []string, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", ident(table)))
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: introspect %s: %w", table, err)
	}
	defer rows.Close()

	var cols []source.Column
	var pk []string
	type pkCol struct {
		name string
		rank int
	}
	var pkCols []pkCol
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   sql.NullString
			notNull int
			dflt    sql.NullString
			pkRank  int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pkRank); err != nil {
			return nil, nil, err
		}
		cols = append(cols, source.Column{
			Name:     name,
			DataType: ctype.String,
			Nullable: notNull == 0 && pkRank == 0,
		})
		if pkRank > 0 {
			pkCols = append(pkCols, pkCol{name: name, rank: pkRank})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if len(cols) == 0 {
		return nil, nil, nil
	}
	// PRAGMA reports pk ordinals; order the key by them.
	for rank := 1; rank <= len(pkCols); rank++ {
		for _, p := range pkCols {
			if p.rank == rank {
				pk = append(pk, p.name)
			}
		}
	}
	return cols, pk, nil
}

func (c *Conn) Stream(ctx context.Context, _, table string, columns []string, chunkSize, limit int, emit func(rows [][]any) error) error {
	query := "SELECT " + identList(columns) + " FROM " + ident(table)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("sqlite: stream %s: %w", table, err)
	}
	defer rows.Close()

	scan := source.NewScanChunk(len(columns))
	chunk := make([][]any, 0, chunkSize)
	for rows.Next() {
		if err := rows.Scan(scan.Ptrs()...); err != nil {
			return fmt.Errorf("sqlite: scan %s: %w", table, err)
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
		return fmt.Errorf("sqlite: cursor %s: %w", table, err)
	}
	if len(chunk) > 0 {
		return emit(chunk)
	}
	return nil
}

func (c *Conn) CountRows(ctx context.Context, _, table string) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+ident(table)).Scan(&n)
	return n, err
}

func ident(name string) string { return source.QuoteIdent(name, '"', '"') }

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
