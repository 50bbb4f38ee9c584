// Package service provides the rollup export implementation
package service

import (
	"context"
	"time"

	"hntrends/internal/modkit/repokit"
	"hntrends/internal/platform/logger"
	"hntrends/internal/platform/metrics"
	"hntrends/internal/services/rollup/domain"
)

// Service wires TxRunner + Binder into the export
type Service struct {
	DB      repokit.TxRunner
	Binder  repokit.Binder[domain.StorageRepo]
	Corpora []domain.Corpus

	// optional
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// New constructs the rollup service
func New(db repokit.TxRunner, binder repokit.Binder[domain.StorageRepo], corpora []domain.Corpus) *Service {
	if db == nil {
		panic("rollup.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("rollup.Service requires a non nil Repo binder")
	}
	if len(corpora) == 0 {
		corpora = domain.DefaultCorpora()
	}
	return &Service{DB: db, Binder: binder, Corpora: corpora, Now: time.Now}
}

// Export reads monthly counts for every corpus and replaces the matching ClickHouse slices
// Counts are read inside one Postgres transaction so both corpora see the same sync
func (s *Service) Export(ctx context.Context) (domain.Summary, error) {
	l := logger.C(ctx).With().Str("mod", "rollup").Logger()
	t0 := time.Now()
	sum := domain.Summary{Rows: map[string]int{}, ExportedAt: s.now()}

	counts := make(map[string][]domain.MonthlyCount, len(s.Corpora))
	if err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.Binder.Bind(q)
		for _, c := range s.Corpora {
			rows, err := r.Counts(ctx, c)
			if err != nil {
				return err
			}
			counts[c.Name] = rows
		}
		return nil
	}); err != nil {
		l.Error().Err(err).Msg("rollup: count failed")
		return sum, err
	}

	r := s.Binder.Bind(s.DB)
	if err := r.Ensure(ctx); err != nil {
		l.Error().Err(err).Msg("rollup: ensure table failed")
		return sum, err
	}
	for _, c := range s.Corpora {
		rows := counts[c.Name]
		if err := r.Replace(ctx, c, rows, sum.ExportedAt); err != nil {
			l.Error().Err(err).Str("corpus", c.Name).Msg("rollup: replace failed")
			return sum, err
		}
		sum.Rows[c.Name] = len(rows)
		if s.Metrics != nil {
			s.Metrics.RollupRows.WithLabelValues(c.Name).Set(float64(len(rows)))
		}
		l.Debug().Str("corpus", c.Name).Int("rows", len(rows)).Msg("rollup: corpus exported")
	}

	l.Info().
		Interface("rows", sum.Rows).
		Dur("took", time.Since(t0)).
		Msg("rollup: export done")
	return sum, nil
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
