// Package fakepg is an in-memory stand-in for the store seams used by repo and service tests
// It records every statement and answers through caller supplied handlers
package fakepg

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"hntrends/internal/platform/store"
)

// ErrNoRows is returned by Row.Scan when a query produced nothing
var ErrNoRows = errors.New("fakepg: no rows")

// Tag is a CommandTag with a fixed affected count
type Tag struct {
	S string
	N int64
}

func (t Tag) String() string      { return t.S }
func (t Tag) RowsAffected() int64 { return t.N }

// Rows is a static result set
type Rows struct {
	Cols    []string
	Data    [][]any
	ScanErr error
	IterErr error

	i      int
	closed bool
}

// NewRows builds a result set from column names and row values
func NewRows(cols []string, data ...[]any) *Rows {
	return &Rows{Cols: cols, Data: data}
}

func (r *Rows) Next() bool {
	if r.closed || r.i >= len(r.Data) {
		return false
	}
	r.i++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	if r.ScanErr != nil {
		return r.ScanErr
	}
	if r.i == 0 || r.i > len(r.Data) {
		return errors.New("fakepg: scan without row")
	}
	row := r.Data[r.i-1]
	if len(dest) != len(row) {
		return fmt.Errorf("fakepg: scan %d dest into %d values", len(dest), len(row))
	}
	for i := range dest {
		if err := assign(dest[i], row[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Rows) Err() error        { return r.IterErr }
func (r *Rows) Close()            { r.closed = true }
func (r *Rows) Columns() []string { return r.Cols }

// Closed reports whether Close was called
func (r *Rows) Closed() bool { return r.closed }

type row struct {
	rows *Rows
	err  error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.rows == nil || !r.rows.Next() {
		return ErrNoRows
	}
	return r.rows.Scan(dest...)
}

// Call is one recorded statement
type Call struct {
	Kind string // exec | query | copy | begin | commit | rollback
	SQL  string
	Args []any
}

// DB implements store.TxRunner over handler funcs
// A nil handler means success with no rows
type DB struct {
	OnExec  func(sql string, args []any) (int64, error)
	OnQuery func(sql string, args []any) (*Rows, error)

	// CommitErr is returned after fn succeeds, simulating a failed commit
	CommitErr error

	mu        sync.Mutex
	calls     []Call
	commits   int
	rollbacks int
	inTx      bool
}

var _ store.TxRunner = (*DB)(nil)

func (d *DB) record(c Call) {
	d.mu.Lock()
	d.calls = append(d.calls, c)
	d.mu.Unlock()
}

func (d *DB) Exec(_ context.Context, sql string, args ...any) (store.CommandTag, error) {
	d.record(Call{Kind: "exec", SQL: sql, Args: args})
	if d.OnExec == nil {
		return Tag{S: "OK", N: 1}, nil
	}
	n, err := d.OnExec(sql, args)
	if err != nil {
		return nil, err
	}
	return Tag{S: "OK", N: n}, nil
}

func (d *DB) Query(_ context.Context, sql string, args ...any) (store.Rows, error) {
	d.record(Call{Kind: "query", SQL: sql, Args: args})
	if d.OnQuery == nil {
		return NewRows(nil), nil
	}
	rs, err := d.OnQuery(sql, args)
	if err != nil {
		return nil, err
	}
	if rs == nil {
		rs = NewRows(nil)
	}
	return rs, nil
}

func (d *DB) QueryRow(ctx context.Context, sql string, args ...any) store.Row {
	rs, err := d.Query(ctx, sql, args...)
	if err != nil {
		return row{err: err}
	}
	return row{rows: rs.(*Rows)}
}

// Tx runs fn with d as the querier and records begin/commit/rollback
func (d *DB) Tx(ctx context.Context, fn func(q store.RowQuerier) error) error {
	return d.tx(ctx, d, fn)
}

func (d *DB) tx(_ context.Context, q store.RowQuerier, fn func(q store.RowQuerier) error) error {
	d.mu.Lock()
	d.inTx = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.inTx = false
		d.mu.Unlock()
	}()

	d.record(Call{Kind: "begin"})
	if err := fn(q); err != nil {
		d.record(Call{Kind: "rollback"})
		d.mu.Lock()
		d.rollbacks++
		d.mu.Unlock()
		return err
	}
	if d.CommitErr != nil {
		d.record(Call{Kind: "rollback"})
		d.mu.Lock()
		d.rollbacks++
		d.mu.Unlock()
		return d.CommitErr
	}
	d.record(Call{Kind: "commit"})
	d.mu.Lock()
	d.commits++
	d.mu.Unlock()
	return nil
}

// Calls returns a copy of the recorded statements
func (d *DB) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Matching returns recorded calls whose SQL contains sub
func (d *DB) Matching(sub string) []Call {
	var out []Call
	for _, c := range d.Calls() {
		if strings.Contains(c.SQL, sub) {
			out = append(out, c)
		}
	}
	return out
}

// Commits returns the number of committed transactions
func (d *DB) Commits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commits
}

// Rollbacks returns the number of rolled back transactions
func (d *DB) Rollbacks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rollbacks
}

// InTx reports whether a transaction is open
func (d *DB) InTx() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inTx
}

// CopyDB is a DB that also speaks the COPY protocol
type CopyDB struct {
	*DB
	OnCopy func(table string, cols []string, rows [][]any) (int64, error)
}

var (
	_ store.TxRunner = (*CopyDB)(nil)
	_ store.Copier   = (*CopyDB)(nil)
)

// WithCopy wraps d so transactions hand out a store.Copier
func WithCopy(d *DB) *CopyDB { return &CopyDB{DB: d} }

func (c *CopyDB) CopyFrom(_ context.Context, table string, cols []string, rows [][]any) (int64, error) {
	c.record(Call{Kind: "copy", SQL: table, Args: []any{cols, len(rows)}})
	if c.OnCopy == nil {
		return int64(len(rows)), nil
	}
	return c.OnCopy(table, cols, rows)
}

// Tx runs fn with c as the querier
func (c *CopyDB) Tx(ctx context.Context, fn func(q store.RowQuerier) error) error {
	return c.tx(ctx, c, fn)
}

func assign(dst, v any) error {
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("fakepg: scan into non-pointer %T", dst)
	}
	el := dv.Elem()
	if v == nil {
		el.Set(reflect.Zero(el.Type()))
		return nil
	}
	sv := reflect.ValueOf(v)
	if sv.Type().AssignableTo(el.Type()) {
		el.Set(sv)
		return nil
	}
	if numeric(sv.Kind()) && numeric(el.Kind()) {
		el.Set(sv.Convert(el.Type()))
		return nil
	}
	if el.Kind() == reflect.Pointer && sv.Type().AssignableTo(el.Type().Elem()) {
		p := reflect.New(el.Type().Elem())
		p.Elem().Set(sv)
		el.Set(p)
		return nil
	}
	return fmt.Errorf("fakepg: cannot scan %T into %s", v, el.Type())
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
