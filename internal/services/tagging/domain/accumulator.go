package domain

import (
	"slices"
	"sync"

	perr "hntrends/internal/platform/errors"
)

// Fact is any fact row with an identity
type Fact interface {
	Key() FactKey
}

// Accumulator collects facts for one corpus
// A second fact for the same (keyword, item) is rejected, as is a fact for an inactive keyword
// Safe for concurrent Add
type Accumulator[F Fact] struct {
	mu      sync.Mutex
	allowed map[string]struct{}
	facts   map[FactKey]F
}

// NewAccumulator accepts facts only for the given keywords
func NewAccumulator[F Fact](keywords []string) *Accumulator[F] {
	allowed := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		allowed[k] = struct{}{}
	}
	return &Accumulator[F]{allowed: allowed, facts: map[FactKey]F{}}
}

// Add stores one fact
func (a *Accumulator[F]) Add(f F) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addLocked(f)
}

// AddAll stores a batch under one lock, stopping at the first rejected fact
func (a *Accumulator[F]) AddAll(fs []F) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, f := range fs {
		if err := a.addLocked(f); err != nil {
			return err
		}
	}
	return nil
}

func (a *Accumulator[F]) addLocked(f F) error {
	k := f.Key()
	if _, ok := a.allowed[k.Keyword]; !ok {
		return perr.WithOp(perr.InvalidArgf("fact for inactive keyword %q", k.Keyword), "tagging.accumulate")
	}
	if _, dup := a.facts[k]; dup {
		return perr.WithOp(perr.DuplicateKeyf("duplicate fact (%s, %s)", k.Keyword, k.ObjectID), "tagging.accumulate")
	}
	a.facts[k] = f
	return nil
}

// Len returns the number of stored facts
func (a *Accumulator[F]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.facts)
}

// Facts returns every fact ordered by (keyword, item id)
func (a *Accumulator[F]) Facts() []F {
	a.mu.Lock()
	out := make([]F, 0, len(a.facts))
	for _, f := range a.facts {
		out = append(out, f)
	}
	a.mu.Unlock()
	slices.SortFunc(out, func(x, y F) int {
		kx, ky := x.Key(), y.Key()
		switch {
		case kx.Less(ky):
			return -1
		case ky.Less(kx):
			return 1
		}
		return 0
	})
	return out
}
