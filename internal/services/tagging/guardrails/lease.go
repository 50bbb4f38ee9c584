package guardrails

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"hntrends/internal/modkit"
	perr "hntrends/internal/platform/errors"
	"hntrends/internal/platform/logger"
	"hntrends/internal/platform/store"
)

// ErrLeaseHeld signals another refresh owns the run lease
var ErrLeaseHeld = perr.WithOp(perr.New(perr.ErrorCodeConflict, "tagging: run lease already held"), "tagging.lease")

// LeaseFunc runs do while holding the single run lease
type LeaseFunc func(ctx context.Context, do func(context.Context) error) error

// MakeRunLease claims tag_run_lease row 1 (auto-reclaim via expires_at), runs do, then releases.
// Release runs even when do fails or ctx is cancelled
func MakeRunLease(deps modkit.Deps, owner string, ttl time.Duration) LeaseFunc {
	owner = fmt.Sprintf("%s:%d", owner, os.Getpid())
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	toInterval := func(d time.Duration) string { return fmt.Sprintf("%d seconds", int64(d/time.Second)) }

	return func(ctx context.Context, do func(context.Context) error) error {
		var claimed bool
		if err := deps.PG.Tx(ctx, func(q store.RowQuerier) error {
			ok, err := store.One(ctx, q, scanBool, `
				UPDATE tag_run_lease
				   SET owner = $1, claimed_at = now(), expires_at = now() + ($2)::interval
				 WHERE id = 1
				   AND (owner IS NULL OR expires_at IS NULL OR expires_at <= now())
				RETURNING true
			`, owner, toInterval(ttl))
			if errors.Is(err, perr.ErrNotFound) {
				return nil // row owned by a live run
			}
			claimed = ok
			return err
		}); err != nil {
			return perr.WithOp(perr.FromPostgres(err, "claim run lease"), "tagging.lease")
		}
		if !claimed {
			return ErrLeaseHeld
		}
		logger.C(ctx).Debug().Str("owner", owner).Dur("ttl", ttl).Msg("tagging: run lease claimed")

		defer func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			_, err := deps.PG.Exec(rctx, `
				UPDATE tag_run_lease
				   SET owner = NULL, claimed_at = NULL, expires_at = NULL
				 WHERE id = 1 AND owner = $1
			`, owner)
			if err != nil {
				logger.C(ctx).Warn().Err(err).Str("owner", owner).Msg("tagging: run lease release failed")
			}
		}()
		return do(ctx)
	}
}

func scanBool(r store.Row) (bool, error) {
	var b bool
	err := r.Scan(&b)
	return b, err
}

// IsLeaseHeld reports whether err means another run holds the lease
func IsLeaseHeld(err error) bool { return errors.Is(err, ErrLeaseHeld) }
