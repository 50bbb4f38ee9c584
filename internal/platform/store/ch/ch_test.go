package ch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"hntrends/internal/platform/testkit"

	"github.com/ClickHouse/clickhouse-go/v2"
)

type fakeBatch struct {
	rows    [][]any
	appErr  error
	sendErr error
	sent    bool
	aborted bool
}

func (b *fakeBatch) Append(v ...any) error {
	if b.appErr != nil {
		return b.appErr
	}
	b.rows = append(b.rows, v)
	return nil
}
func (b *fakeBatch) Send() error  { b.sent = true; return b.sendErr }
func (b *fakeBatch) Abort() error { b.aborted = true; return nil }

type fakeConn struct {
	execSQL  []string
	batchSQL string
	batch    *fakeBatch
	prepErr  error
	pingErr  error
	closed   bool
}

func (f *fakeConn) Exec(_ context.Context, q string, _ ...any) error {
	f.execSQL = append(f.execSQL, q)
	return nil
}
func (f *fakeConn) Query(context.Context, string, ...any) (Rows, error) {
	return nil, errors.New("not used")
}
func (f *fakeConn) PrepareBatch(_ context.Context, q string) (Batch, error) {
	if f.prepErr != nil {
		return nil, f.prepErr
	}
	f.batchSQL = q
	return f.batch, nil
}
func (f *fakeConn) Ping(context.Context) error { return f.pingErr }
func (f *fakeConn) Close() error               { f.closed = true; return nil }

func TestOpen_RejectsEmptyAndBadDSN(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
	if _, err := Open(context.Background(), Config{URL: "://nope"}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestOpen_AppliesClientInfo(t *testing.T) {
	testkit.Serial(t)

	var got *clickhouse.Options
	fc := &fakeConn{}
	testkit.Swap(t, &openConn, func(o *clickhouse.Options) (conn, error) {
		got = o
		return fc, nil
	})

	c, err := Open(context.Background(), Config{URL: "clickhouse://default:@localhost:9000/trends", Role: "hntrends-rollup"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got == nil || got.Auth.Database != "trends" {
		t.Fatalf("options not parsed from dsn: %+v", got)
	}
	var role string
	for _, p := range got.ClientInfo.Products {
		if p.Name == "role" {
			role = p.Version
		}
	}
	if role != "hntrends-rollup" {
		t.Fatalf("client info role = %q", role)
	}
	if err := c.Close(); err != nil || !fc.closed {
		t.Fatalf("Close did not reach conn")
	}
}

func TestInsert_AppendsAndSends(t *testing.T) {
	t.Parallel()

	fb := &fakeBatch{}
	fc := &fakeConn{batch: fb}
	c := &CH{c: fc}

	cols := []string{"corpus", "year_month", "word", "occurrences"}
	err := c.Insert(context.Background(), "trends.keyword_monthly", cols, [][]any{
		{"stories", "2024-01", "rust", uint64(3)},
		{"stories", "2024-02", "rust", uint64(1)},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if fc.batchSQL != "INSERT INTO `trends`.`keyword_monthly` (`corpus`, `year_month`, `word`, `occurrences`)" {
		t.Fatalf("batch sql = %q", fc.batchSQL)
	}
	if len(fb.rows) != 2 || !fb.sent {
		t.Fatalf("rows=%d sent=%v", len(fb.rows), fb.sent)
	}
}

func TestInsert_EmptyIsNoop(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{prepErr: errors.New("should not prepare")}
	if err := (&CH{c: fc}).Insert(context.Background(), "t", []string{"a"}, nil); err != nil {
		t.Fatalf("empty insert should be a no-op, got %v", err)
	}
}

func TestInsert_AbortsOnBadRow(t *testing.T) {
	t.Parallel()

	fb := &fakeBatch{}
	c := &CH{c: &fakeConn{batch: fb}}
	err := c.Insert(context.Background(), "t", []string{"a", "b"}, [][]any{{1}})
	if err == nil || !strings.Contains(err.Error(), "row 0 has 1 values") {
		t.Fatalf("expected width error, got %v", err)
	}
	if !fb.aborted || fb.sent {
		t.Fatalf("batch should be aborted, not sent")
	}

	fb2 := &fakeBatch{appErr: errors.New("type mismatch")}
	c2 := &CH{c: &fakeConn{batch: fb2}}
	if err := c2.Insert(context.Background(), "t", []string{"a"}, [][]any{{1}}); err == nil || !fb2.aborted {
		t.Fatalf("append error should abort, err=%v", err)
	}
}

func TestInsert_SendAndPrepareErrors(t *testing.T) {
	t.Parallel()

	c := &CH{c: &fakeConn{prepErr: errors.New("no table")}}
	if err := c.Insert(context.Background(), "t", []string{"a"}, [][]any{{1}}); err == nil {
		t.Fatalf("expected prepare error")
	}

	c2 := &CH{c: &fakeConn{batch: &fakeBatch{sendErr: errors.New("net")}}}
	if err := c2.Insert(context.Background(), "t", []string{"a"}, [][]any{{1}}); err == nil {
		t.Fatalf("expected send error")
	}
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"keyword_monthly":    "`keyword_monthly`",
		"db.keyword_monthly": "`db`.`keyword_monthly`",
		"we`ird":             "`we``ird`",
	}
	for in, want := range cases {
		if got := QuoteIdent(in); got != want {
			t.Fatalf("QuoteIdent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClose_NilSafe(t *testing.T) {
	t.Parallel()

	var c *CH
	if err := c.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func TestBuildClientInfo_FillsBlanks(t *testing.T) {
	t.Parallel()

	ci := BuildClientInfo("", "  ")
	for _, p := range ci.Products {
		if p.Version == "" {
			t.Fatalf("product %q has empty version", p.Name)
		}
	}
}
