package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hntrends/internal/modkit/repokit"
	perr "hntrends/internal/platform/errors"
	"hntrends/internal/platform/logger"
	"hntrends/internal/platform/store"
	pstrings "hntrends/internal/platform/strings"
	"hntrends/internal/services/tagging/domain"
)

// DefaultInsertChunk is the row count per multi-row INSERT when COPY is unavailable
const DefaultInsertChunk = 1000

var (
	storyColumns  = []string{"word", "objectid", "submission_date", "title", "year_month"}
	hiringColumns = []string{"word", "objectid", "year_month"}
)

// Sync replaces the fact tables in Postgres
type Sync struct {
	DB repokit.TxRunner

	// StoriesTable and HiringTable default to keywords and hiring_keywords
	StoriesTable string
	HiringTable  string

	// Hooks run inside the transaction after stories are written and before hiring
	Hooks []repokit.MidHook

	// Chunk is the rows per INSERT on the fallback path
	Chunk int
}

var _ domain.SyncPort = (*Sync)(nil)

// NewSync returns a Sync over db with default table names
func NewSync(db repokit.TxRunner, hooks ...repokit.MidHook) *Sync {
	return &Sync{DB: db, StoriesTable: "keywords", HiringTable: "hiring_keywords", Hooks: hooks, Chunk: DefaultInsertChunk}
}

// LockTimeout returns a begin hook that caps how long the transaction waits on row or table locks
func LockTimeout(d time.Duration) repokit.BeginHook {
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", d.Milliseconds())
	return func(ctx context.Context, q repokit.Queryer) error {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return perr.WithOp(perr.FromPostgres(err, "sync: set lock_timeout"), "tagging.sync")
		}
		return nil
	}
}

// Replace deletes and rewrites both fact tables inside one transaction
// Any failure rolls back both tables
func (s *Sync) Replace(ctx context.Context, stories []domain.StoryFact, hiring []domain.HiringFact) error {
	storyRows := make([][]any, len(stories))
	for i, f := range stories {
		storyRows[i] = []any{f.Keyword, f.ObjectID, pstrings.SQLNull(f.SubmissionDate), pstrings.SQLNull(f.Title), pstrings.SQLNull(f.YearMonth)}
	}
	hiringRows := make([][]any, len(hiring))
	for i, f := range hiring {
		hiringRows[i] = []any{f.Keyword, f.ObjectID, pstrings.SQLNull(f.YearMonth)}
	}

	t0 := time.Now()
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		if err := s.replaceTable(ctx, q, domain.Stories, s.StoriesTable, storyColumns, storyRows); err != nil {
			return err
		}
		if err := repokit.RunMidHooks(ctx, q, s.Hooks...); err != nil {
			return perr.WithOp(perr.WrapIf(err, perr.CodeOf(err), "sync: mid hook"), "tagging.sync")
		}
		return s.replaceTable(ctx, q, domain.Hiring, s.HiringTable, hiringColumns, hiringRows)
	})
	if err != nil {
		logger.C(ctx).Error().Err(err).Msg("tagging: sync rolled back")
		return err
	}
	logger.C(ctx).Info().
		Int("story_facts", len(stories)).
		Int("hiring_facts", len(hiring)).
		Dur("took", time.Since(t0)).
		Msg("tagging: sync committed")
	return nil
}

func (s *Sync) replaceTable(ctx context.Context, q repokit.Queryer, corpus domain.CorpusKind, table string, cols []string, rows [][]any) error {
	qt := store.QuoteIdent(table)
	if _, err := q.Exec(ctx, "DELETE FROM "+qt); err != nil {
		return syncErr(ctx, err, corpus, "delete")
	}
	if len(rows) == 0 {
		return nil
	}
	if cp, ok := q.(store.Copier); ok {
		n, err := cp.CopyFrom(ctx, table, cols, rows)
		if err != nil {
			return syncErr(ctx, err, corpus, "copy")
		}
		if n != int64(len(rows)) {
			return perr.WithOp(perr.DBf("sync %s: copied %d of %d rows", corpus, n, len(rows)), "tagging.sync")
		}
		return nil
	}
	chunk := s.Chunk
	if chunk <= 0 {
		chunk = DefaultInsertChunk
	}
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		sql, args := insertSQL(qt, cols, rows[start:end])
		if _, err := q.Exec(ctx, sql, args...); err != nil {
			return syncErr(ctx, err, corpus, "insert")
		}
	}
	return nil
}

// insertSQL builds one multi-row parameterized INSERT
func insertSQL(table string, cols []string, rows [][]any) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, strings.Join(cols, ", "))
	args := make([]any, 0, len(rows)*len(cols))
	p := 1
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range r {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			p++
		}
		b.WriteByte(')')
		args = append(args, r...)
	}
	return b.String(), args
}

func syncErr(ctx context.Context, err error, corpus domain.CorpusKind, statement string) error {
	msg := fmt.Sprintf("sync %s: %s", corpus, statement)
	var out error
	if ctx.Err() != nil {
		out = perr.FromContext(ctx.Err(), msg)
	} else {
		out = perr.FromPostgres(err, msg)
	}
	logger.C(ctx).Error().Err(err).
		Str("corpus", string(corpus)).
		Str("statement", statement).
		Msg("tagging: sync statement failed")
	return perr.WithOp(out, "tagging.sync")
}
