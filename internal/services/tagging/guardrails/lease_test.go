package guardrails

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"hntrends/internal/modkit"
	perr "hntrends/internal/platform/errors"
	"hntrends/internal/platform/testkit/fakepg"
)

func leaseDB(claim bool) *fakepg.DB {
	return &fakepg.DB{OnQuery: func(sql string, _ []any) (*fakepg.Rows, error) {
		if !strings.Contains(sql, "UPDATE tag_run_lease") {
			return nil, errors.New("unexpected query")
		}
		if !claim {
			return fakepg.NewRows([]string{"bool"}), nil
		}
		return fakepg.NewRows([]string{"bool"}, []any{true}), nil
	}}
}

func TestRunLease_ClaimRunRelease(t *testing.T) {
	db := leaseDB(true)
	lease := MakeRunLease(modkit.Deps{PG: db}, "test", time.Minute)

	ran := false
	err := lease(context.Background(), func(ctx context.Context) error {
		ran = true
		if len(db.Matching("SET owner = NULL")) != 0 {
			t.Fatalf("released before work finished")
		}
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("lease err=%v ran=%v", err, ran)
	}

	claim := db.Matching("RETURNING true")
	if len(claim) != 1 {
		t.Fatalf("claims = %d", len(claim))
	}
	if owner := claim[0].Args[0].(string); !strings.HasPrefix(owner, "test:") {
		t.Fatalf("owner = %q", owner)
	}
	if claim[0].Args[1] != "60 seconds" {
		t.Fatalf("ttl arg = %v", claim[0].Args[1])
	}
	rel := db.Matching("SET owner = NULL")
	if len(rel) != 1 || rel[0].Args[0] != claim[0].Args[0] {
		t.Fatalf("release = %+v", rel)
	}
}

func TestRunLease_ReleasesOnFailure(t *testing.T) {
	db := leaseDB(true)
	lease := MakeRunLease(modkit.Deps{PG: db}, "test", 0)
	boom := errors.New("boom")

	ctx, cancel := context.WithCancel(context.Background())
	err := lease(ctx, func(context.Context) error { cancel(); return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(db.Matching("SET owner = NULL")) != 1 {
		t.Fatalf("lease not released after failure")
	}
	if db.Matching("RETURNING true")[0].Args[1] != "7200 seconds" {
		t.Fatalf("default ttl not applied")
	}
}

func TestRunLease_Held(t *testing.T) {
	db := leaseDB(false)
	lease := MakeRunLease(modkit.Deps{PG: db}, "test", time.Minute)

	err := lease(context.Background(), func(context.Context) error {
		t.Fatalf("work must not run without the lease")
		return nil
	})
	if !IsLeaseHeld(err) {
		t.Fatalf("expected ErrLeaseHeld, got %v", err)
	}
	if !perr.IsCode(err, perr.ErrorCodeConflict) || perr.ExitStatus(err) != 3 {
		t.Fatalf("held lease code = %s", perr.CodeOf(err))
	}
	if len(db.Matching("SET owner = NULL")) != 0 {
		t.Fatalf("nothing to release")
	}
}

func TestRunLease_ClaimError(t *testing.T) {
	db := &fakepg.DB{OnQuery: func(string, []any) (*fakepg.Rows, error) {
		return nil, errors.New("down")
	}}
	err := MakeRunLease(modkit.Deps{PG: db}, "test", time.Minute)(context.Background(), func(context.Context) error { return nil })
	if err == nil || IsLeaseHeld(err) {
		t.Fatalf("expected claim error, got %v", err)
	}
}
