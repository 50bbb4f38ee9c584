// Package service provides the keyword registry implementation
package service

import (
	"context"
	"time"

	"hntrends/internal/modkit/repokit"
	perr "hntrends/internal/platform/errors"
	"hntrends/internal/platform/logger"
	"hntrends/internal/services/keywords/domain"
)

// Service wires TxRunner + Binder into the registry operations
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.StorageRepo]
}

// New constructs the keyword registry
func New(db repokit.TxRunner, binder repokit.Binder[domain.StorageRepo]) *Service {
	if db == nil {
		panic("keywords.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("keywords.Service requires a non nil Repo binder")
	}
	return &Service{DB: db, Binder: binder}
}

// List reads keyword_list once and validates every row
// Any invalid or duplicate row fails the whole read
func (s *Service) List(ctx context.Context) ([]domain.Keyword, error) {
	t0 := time.Now()
	list, err := s.Binder.Bind(s.DB).List(ctx)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateList(list); err != nil {
		return nil, err
	}
	hiring := 0
	for _, k := range list {
		if k.IncludeHiring {
			hiring++
		}
	}
	logger.C(ctx).Info().
		Int("keywords", len(list)).
		Int("hiring_keywords", hiring).
		Dur("took", time.Since(t0)).
		Msg("keywords: list loaded")
	return list, nil
}

// Seed normalizes, validates and upserts list inside one transaction
func (s *Service) Seed(ctx context.Context, list []domain.Keyword) (int, error) {
	norm := make([]domain.Keyword, len(list))
	for i, k := range list {
		norm[i] = domain.Normalize(k)
	}
	if err := domain.ValidateList(norm); err != nil {
		return 0, err
	}
	n := 0
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.Binder.Bind(q)
		for _, k := range norm {
			if err := r.Upsert(ctx, k); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, perr.WithOpChain(err, "keywords.seed")
	}
	logger.C(ctx).Info().Int("keywords", n).Msg("keywords: seeded")
	return n, nil
}
