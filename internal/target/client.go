// Package target manages the columnar target store: connection handling,
// database/table DDL with sort-key derivation, batched inserts, and the
// post-load dedup-and-swap reconciliation.
package target

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Client is the narrow seam between the engine and the target store. The
// production implementation wraps the native ClickHouse connection; tests
// substitute a recorder.
type Client interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, query string, args ...any) error
	// QueryString runs a single-row, single-string query (e.g. reading a
	// table's sort key back from system.tables).
	QueryString(ctx context.Context, query string, args ...any) (string, error)
	// QueryUInt64 runs a single-row count-style query.
	QueryUInt64(ctx context.Context, query string, args ...any) (uint64, error)
	// Insert appends rows (aligned to columns order) to table in one batch
	// and returns the number of rows sent.
	Insert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	Close() error
}

// Options configures the target connection.
type Options struct {
	Addr     []string
	Database string
	Username string
	Password string
}

// Connect opens a native-protocol connection to the target store.
func Connect(ctx context.Context, opts Options) (Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: opts.Addr,
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		DialTimeout: 10 * time.Second,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return nil, fmt.Errorf("target: open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("target: ping: %w", err)
	}
	return &client{conn: conn}, nil
}

type client struct {
	conn clickhouse.Conn
}

func (c *client) Ping(ctx context.Context) error { return c.conn.Ping(ctx) }
func (c *client) Close() error                   { return c.conn.Close() }

func (c *client) Exec(ctx context.Context, query string, args ...any) error {
	return c.conn.Exec(ctx, query, args...)
}

func (c *client) QueryString(ctx context.Context, query string, args ...any) (string, error) {
	var s string
	if err := c.conn.QueryRow(ctx, query, args...).Scan(&s); err != nil {
		return "", err
	}
	return s, nil
}

func (c *client) QueryUInt64(ctx context.Context, query string, args ...any) (uint64, error) {
	var n uint64
	if err := c.conn.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *client) Insert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+table+" ("+strings.Join(quoteAll(columns), ", ")+")")
	if err != nil {
		return 0, fmt.Errorf("target: prepare batch: %w", err)
	}
	for _, row := range rows {
		if err := batch.Append(row...); err != nil {
			_ = batch.Abort()
			return 0, fmt.Errorf("target: append: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("target: send: %w", err)
	}
	return int64(len(rows)), nil
}

// Ident quotes a single identifier for the target store.
func Ident(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}

// Qualify quotes a db.table pair.
func Qualify(db, table string) string {
	return Ident(db) + "." + Ident(table)
}

func quoteAll(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = Ident(c)
	}
	return out
}
