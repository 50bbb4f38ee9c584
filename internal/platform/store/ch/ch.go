// Package ch provides a clickhouse client over clickhouse-go's native protocol
package ch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hntrends/internal/core/version"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config configures clickhouse client
type Config struct {
	URL         string
	Role        string
	DialTimeout time.Duration
}

// Rows is the minimal result set iteration for ch
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	Columns() []string
}

// Batch is the append-then-send surface of a prepared insert
type Batch interface {
	Append(v ...any) error
	Send() error
	Abort() error
}

// conn is the slice of driver.Conn the client uses
type conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	PrepareBatch(ctx context.Context, query string) (Batch, error)
	Ping(ctx context.Context) error
	Close() error
}

// CH is a clickhouse client
type CH struct {
	c conn
}

var openConn = func(opts *clickhouse.Options) (conn, error) {
	c, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}
	return nativeConn{c: c}, nil
}

// Open parses the DSN and returns a client; connections are dialed lazily by the driver
func Open(_ context.Context, cfg Config) (*CH, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("ch: empty dsn")
	}
	opts, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ch: parse dsn: %w", err)
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	opts.ClientInfo = BuildClientInfo(cfg.Role, version.Version())

	c, err := openConn(opts)
	if err != nil {
		return nil, fmt.Errorf("ch: open: %w", err)
	}
	return &CH{c: c}, nil
}

// Exec runs a statement that returns no rows (DDL, ALTER ... DELETE)
func (c *CH) Exec(ctx context.Context, query string, args ...any) error {
	return c.c.Exec(ctx, query, args...)
}

// Insert writes rows into table through one native batch
// Every row must carry one value per column, in column order
func (c *CH) Insert(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	b, err := c.c.PrepareBatch(ctx, InsertSQL(table, columns))
	if err != nil {
		return fmt.Errorf("ch: prepare batch %s: %w", table, err)
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			_ = b.Abort()
			return fmt.Errorf("ch: row %d has %d values, want %d", i, len(r), len(columns))
		}
		if err := b.Append(r...); err != nil {
			_ = b.Abort()
			return fmt.Errorf("ch: append row %d: %w", i, err)
		}
	}
	if err := b.Send(); err != nil {
		return fmt.Errorf("ch: send batch %s: %w", table, err)
	}
	return nil
}

// Query runs a query and returns ch.Rows
func (c *CH) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return c.c.Query(ctx, query, args...)
}

// Ping verifies connectivity
func (c *CH) Ping(ctx context.Context) error { return c.c.Ping(ctx) }

// Close closes resources
func (c *CH) Close() error {
	if c == nil || c.c == nil {
		return nil
	}
	return c.c.Close()
}

// InsertSQL renders the batch insert header for table and columns
func InsertSQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = QuoteIdent(col)
	}
	return fmt.Sprintf("INSERT INTO %s (%s)", QuoteIdent(table), strings.Join(quoted, ", "))
}

// QuoteIdent backtick-quotes a possibly db-qualified identifier
func QuoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
	}
	return strings.Join(parts, ".")
}

// nativeConn narrows driver.Conn to conn
type nativeConn struct{ c driver.Conn }

func (n nativeConn) Exec(ctx context.Context, query string, args ...any) error {
	return n.c.Exec(ctx, query, args...)
}

func (n nativeConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return n.c.Query(ctx, query, args...)
}

func (n nativeConn) PrepareBatch(ctx context.Context, query string) (Batch, error) {
	return n.c.PrepareBatch(ctx, query)
}

func (n nativeConn) Ping(ctx context.Context) error { return n.c.Ping(ctx) }
func (n nativeConn) Close() error                   { return n.c.Close() }
