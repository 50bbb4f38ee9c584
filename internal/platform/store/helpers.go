package store

import (
	"context"
	"fmt"
	"time"

	perr "hntrends/internal/platform/errors"

	"github.com/jackc/pgx/v5/pgtype"
)

// Exec runs a write and returns the raw CommandTag
func Exec(ctx context.Context, q RowQuerier, sql string, args ...any) (CommandTag, error) {
	return q.Exec(ctx, sql, args...)
}

// ExecOne runs a write and asserts exactly 1 row affected
func ExecOne(ctx context.Context, q RowQuerier, sql string, args ...any) error {
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if n := tag.RowsAffected(); n != 1 {
		return fmt.Errorf("expected exactly one row affected, got %d", n)
	}
	return nil
}

// Scalar queries the first row, first column into T
func Scalar[T any](ctx context.Context, q RowQuerier, sql string, args ...any) (T, error) {
	var zero T
	r := q.QueryRow(ctx, sql, args...)
	var v T
	if err := r.Scan(&v); err != nil {
		return zero, err
	}
	return v, nil
}

// One uses a custom scanner to map a single row into T
func One[T any](ctx context.Context, q RowQuerier, scan func(Row) (T, error), sql string, args ...any) (T, error) {
	var zero T
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return zero, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return zero, err
		}
		return zero, perr.ErrNotFound
	}
	item, err := scan(rows)
	if err != nil {
		return zero, err
	}
	if rows.Next() {
		return zero, fmt.Errorf("expected 1 row, got more")
	}
	return item, rows.Err()
}

// Many uses a custom scanner to map all rows into []T
func Many[T any](ctx context.Context, q RowQuerier, scan func(Row) (T, error), sql string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// Date is a value read from a postgres date column
// Stream hands these out instead of time.Time so callers can tell dates from timestamps
type Date time.Time

// String renders the date as YYYY-MM-DD
func (d Date) String() string { return time.Time(d).Format(time.DateOnly) }

// ColumnTyper is implemented by rows that know the postgres type OID of each column
type ColumnTyper interface {
	ColumnOIDs() []uint32
}

// Stream runs sql, reports the column names to header once (even for an empty result)
// and then hands every row to fn as untyped values in column order
// The values slice is reused between calls; fn must copy what it keeps
func Stream(ctx context.Context, q RowQuerier, sql string, header func(cols []string) error, fn func(vals []any) error, args ...any) error {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols := rows.Columns()
	var oids []uint32
	if ct, ok := rows.(ColumnTyper); ok {
		oids = ct.ColumnOIDs()
	}
	if header != nil {
		if err := header(cols); err != nil {
			return err
		}
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		clear(vals)
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		for i := range vals {
			vals[i] = deref(vals[i])
			if i < len(oids) && oids[i] == pgtype.DateOID {
				if t, ok := vals[i].(time.Time); ok {
					vals[i] = Date(t)
				}
			}
		}
		if err := fn(vals); err != nil {
			return err
		}
	}
	return rows.Err()
}

func deref(v any) any {
	switch x := v.(type) {
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	case *string:
		if x == nil {
			return nil
		}
		return *x
	default:
		return v
	}
}

// QuoteIdent quotes a possibly schema-qualified table name for postgres
func QuoteIdent(table string) string { return identifier(table).Sanitize() }
