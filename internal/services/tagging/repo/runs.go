package repo

import (
	"context"
	"time"

	"hntrends/internal/modkit/repokit"
	perr "hntrends/internal/platform/errors"
	"hntrends/internal/platform/store"
	pstrings "hntrends/internal/platform/strings"
	ptime "hntrends/internal/platform/time"
	"hntrends/internal/services/tagging/domain"

	"github.com/google/uuid"
)

type (
	// Ledger is the Postgres run ledger (tag_runs)
	Ledger struct{}
	ledger struct{ q repokit.Queryer }
)

// NewLedger returns a binder for the run ledger
func NewLedger() repokit.Binder[domain.LedgerRepo] { return Ledger{} }

// Bind attaches a Queryer to the ledger
func (Ledger) Bind(q repokit.Queryer) domain.LedgerRepo { return &ledger{q: q} }

// Start inserts a running row
func (l *ledger) Start(ctx context.Context, runID uuid.UUID, startedAt time.Time) error {
	const sql = `
		INSERT INTO tag_runs (run_id, started_at, status)
		VALUES ($1, $2, $3)`
	if err := store.ExecOne(ctx, l.q, sql, runID, startedAt.UTC(), string(domain.RunRunning)); err != nil {
		return perr.WithOp(perr.FromPostgres(err, "ledger start"), "tagging.ledger")
	}
	return nil
}

// Finish stamps the outcome on the run row
func (l *ledger) Finish(ctx context.Context, runID uuid.UUID, out domain.RunOutcome) error {
	const sql = `
		UPDATE tag_runs
		   SET finished_at  = $2,
		       status       = $3,
		       keywords     = $4,
		       story_facts  = $5,
		       hiring_facts = $6,
		       error        = nullif($7, '')
		 WHERE run_id = $1`
	if err := store.ExecOne(ctx, l.q, sql,
		runID, ptime.Ptr(out.FinishedAt), string(out.Status),
		out.Keywords, out.StoryFacts, out.HiringFacts, out.ErrText,
	); err != nil {
		return perr.WithOp(perr.FromPostgres(err, "ledger finish"), "tagging.ledger")
	}
	return nil
}

// Last returns the most recently started run
func (l *ledger) Last(ctx context.Context) (domain.RunRecord, error) {
	const sql = `
		SELECT run_id, started_at, finished_at, status, keywords, story_facts, hiring_facts, error
		  FROM tag_runs
		 ORDER BY started_at DESC
		 LIMIT 1`
	rec, err := store.One(ctx, l.q, scanRun, sql)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.RunRecord{}, err
		}
		return domain.RunRecord{}, perr.WithOp(perr.FromPostgres(err, "ledger last"), "tagging.ledger")
	}
	return rec, nil
}

func scanRun(row store.Row) (domain.RunRecord, error) {
	var (
		rec      domain.RunRecord
		finished *time.Time
		status   string
		errText  *string
	)
	err := row.Scan(&rec.RunID, &rec.StartedAt, &finished, &status,
		&rec.Keywords, &rec.StoryFacts, &rec.HiringFacts, &errText)
	rec.FinishedAt = ptime.Deref(finished)
	rec.ErrText = pstrings.Deref(errText)
	rec.Status = domain.RunStatus(status)
	return rec, err
}
