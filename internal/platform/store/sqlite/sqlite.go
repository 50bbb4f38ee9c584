// Package sqlite opens run-scoped SQLite workspace databases (modernc driver, FTS5 built in)
//
// Every connection gets its pragmas through the DSN so pooled connections
// agree on busy_timeout and WAL; WAL lets the match phase read in parallel
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	// registers the "sqlite" database/sql driver
	_ "modernc.org/sqlite"
)

type config struct {
	busyTimeout time.Duration
	synchronous string
	maxConns    int
	cacheSize   int
}

func defaults() config {
	return config{
		busyTimeout: 10 * time.Second,
		synchronous: "NORMAL",
		maxConns:    4,
	}
}

// Option customises Open behaviour
type Option func(*config)

// WithBusyTimeout sets PRAGMA busy_timeout. Default: 10s
func WithBusyTimeout(d time.Duration) Option { return func(c *config) { c.busyTimeout = d } }

// WithSynchronous sets PRAGMA synchronous. Default: NORMAL
func WithSynchronous(mode string) Option { return func(c *config) { c.synchronous = mode } }

// WithMaxConns caps the pool; readers beyond this queue. Default: 4
func WithMaxConns(n int) Option { return func(c *config) { c.maxConns = n } }

// WithCacheSize sets PRAGMA cache_size; negative values are KiB
func WithCacheSize(pages int) Option { return func(c *config) { c.cacheSize = pages } }

// DB is an open workspace database
type DB struct {
	*sql.DB

	// Path is the database file on disk
	Path string

	// owned files are removed (with their WAL sidecars) on Close
	owned bool
}

// Open opens (or creates) the database at path
func Open(ctx context.Context, path string, opts ...Option) (*DB, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(path, cfg))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if cfg.maxConns > 0 {
		db.SetMaxOpenConns(cfg.maxConns)
		db.SetMaxIdleConns(cfg.maxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &DB{DB: db, Path: path}, nil
}

// OpenTemp creates a fresh database file in dir (os.TempDir when empty)
// and removes it when the DB is closed
func OpenTemp(ctx context.Context, dir, pattern string, opts ...Option) (*DB, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: mkdir: %w", err)
	}
	f, err := os.CreateTemp(dir, pattern+"-*.db")
	if err != nil {
		return nil, fmt.Errorf("sqlite: create temp: %w", err)
	}
	path := f.Name()
	_ = f.Close()

	db, err := Open(ctx, path, opts...)
	if err != nil {
		removeFiles(path)
		return nil, err
	}
	db.owned = true
	return db, nil
}

// Close closes the pool and removes owned files
func (d *DB) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	err := d.DB.Close()
	if d.owned {
		if rmErr := removeFiles(d.Path); rmErr != nil {
			err = errors.Join(err, rmErr)
		}
	}
	return err
}

// QuoteIdent double-quotes a SQLite identifier
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func dsn(path string, cfg config) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.busyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", fmt.Sprintf("synchronous(%s)", cfg.synchronous))
	if cfg.cacheSize != 0 {
		q.Add("_pragma", fmt.Sprintf("cache_size(%d)", cfg.cacheSize))
	}
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

func removeFiles(path string) error {
	var errs []error
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
