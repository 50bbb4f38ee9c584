// Package repo provides the rollup storage implementation
package repo

import (
	"context"
	"time"

	"hntrends/internal/modkit/repokit"
	perr "hntrends/internal/platform/errors"
	"hntrends/internal/platform/store"
	"hntrends/internal/services/rollup/domain"
)

// DefaultTable is the ClickHouse rollup table
const DefaultTable = "keyword_monthly"

var columns = []string{"corpus", "year_month", "word", "occurrences", "exported_at"}

// NewHybrid returns a binder that reads facts from the bound Postgres querier
// and writes rollups to ch
func NewHybrid(ch store.Clickhouse, table string) repokit.Binder[domain.StorageRepo] {
	if table == "" {
		table = DefaultTable
	}
	return &hybridBinder{ch: ch, table: table}
}

type hybridBinder struct {
	ch    store.Clickhouse
	table string
}

func (b *hybridBinder) Bind(q repokit.Queryer) domain.StorageRepo {
	return &hybridStore{pg: q, ch: b.ch, table: b.table}
}

type hybridStore struct {
	pg    repokit.Queryer
	ch    store.Clickhouse
	table string
}

func (s *hybridStore) Counts(ctx context.Context, c domain.Corpus) ([]domain.MonthlyCount, error) {
	sql := `
		SELECT coalesce(year_month, ''), word, count(*)
		  FROM ` + store.QuoteIdent(c.FactTable) + `
		 GROUP BY 1, 2
		 ORDER BY 1, 2`
	out, err := store.Many(ctx, s.pg, scanCount, sql)
	if err != nil {
		return nil, perr.WithOp(perr.FromPostgresf(err, "count %s", c.FactTable), "rollup.counts")
	}
	return out, nil
}

func scanCount(r store.Row) (domain.MonthlyCount, error) {
	var (
		mc domain.MonthlyCount
		n  int64
	)
	err := r.Scan(&mc.YearMonth, &mc.Word, &n)
	mc.Occurrences = uint64(n)
	return mc, err
}

func (s *hybridStore) Ensure(ctx context.Context) error {
	if err := s.ch.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table+` (
		  corpus      LowCardinality(String),
		  year_month  String,
		  word        String,
		  occurrences UInt64,
		  exported_at DateTime
		)
		ENGINE = MergeTree
		ORDER BY (corpus, year_month, word)`); err != nil {
		return perr.WithOp(perr.Wrapf(err, perr.ErrorCodeUnavailable, "ensure %s", s.table), "rollup.ensure")
	}
	return nil
}

// Replace clears the corpus slice and blocks until the mutation is applied, then batch inserts
func (s *hybridStore) Replace(ctx context.Context, c domain.Corpus, rows []domain.MonthlyCount, exportedAt time.Time) error {
	if err := s.ch.Exec(ctx, `
		ALTER TABLE `+s.table+`
		DELETE WHERE corpus = ?
		SETTINGS mutations_sync=1`, c.Name); err != nil {
		return perr.WithOp(perr.Wrapf(err, perr.ErrorCodeUnavailable, "clear %s rollups", c.Name), "rollup.replace")
	}
	if len(rows) == 0 {
		return nil
	}
	at := exportedAt.UTC().Truncate(time.Second)
	batch := make([][]any, len(rows))
	for i, r := range rows {
		batch[i] = []any{c.Name, r.YearMonth, r.Word, r.Occurrences, at}
	}
	if err := s.ch.Insert(ctx, s.table, columns, batch); err != nil {
		return perr.WithOp(perr.Wrapf(err, perr.ErrorCodeUnavailable, "insert %s rollups", c.Name), "rollup.replace")
	}
	return nil
}
