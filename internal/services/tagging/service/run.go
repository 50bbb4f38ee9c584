package service

import (
	"context"
	"sync"
	"time"

	"hntrends/internal/platform/logger"
	kwdomain "hntrends/internal/services/keywords/domain"
	"hntrends/internal/services/tagging/domain"

	"github.com/google/uuid"
)

// Run is the state of one refresh: built when the run starts and torn down when it ends
// Nothing in it outlives the run
type Run struct {
	ID      uuid.UUID
	Started time.Time

	Keywords []kwdomain.Keyword
	WS       domain.WorkspacePort

	Stories *domain.Accumulator[domain.StoryFact]
	Hiring  *domain.Accumulator[domain.HiringFact]

	StoryRows  int
	HiringRows int

	mu        sync.Mutex
	durations map[domain.Stage]time.Duration
	closers   []func() error
	synced    bool
}

func newRun(id uuid.UUID, started time.Time) *Run {
	return &Run{ID: id, Started: started, durations: map[domain.Stage]time.Duration{}}
}

// setKeywords installs the active keyword list and the accumulators bound to it
// Hiring facts are only accepted for keywords flagged for the hiring corpus
func (r *Run) setKeywords(list []kwdomain.Keyword) {
	r.Keywords = list
	hiring := make([]string, 0, len(list))
	for _, k := range list {
		if k.IncludeHiring {
			hiring = append(hiring, k.Token)
		}
	}
	r.Stories = domain.NewAccumulator[domain.StoryFact](kwdomain.Tokens(list))
	r.Hiring = domain.NewAccumulator[domain.HiringFact](hiring)
}

func (r *Run) onClose(fn func() error) { r.closers = append(r.closers, fn) }

// close releases run resources in reverse order
func (r *Run) close(ctx context.Context) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			logger.C(ctx).Warn().Err(err).Msg("tagging: run teardown")
		}
	}
	r.closers = nil
}

func (r *Run) addDuration(st domain.Stage, d time.Duration) {
	r.mu.Lock()
	r.durations[st] += d
	r.mu.Unlock()
}

func (r *Run) factCounts() (stories, hiring int) {
	if r.Stories != nil {
		stories = r.Stories.Len()
	}
	if r.Hiring != nil {
		hiring = r.Hiring.Len()
	}
	return stories, hiring
}

// report snapshots the run for callers
func (r *Run) report(status domain.RunStatus) domain.Report {
	sf, hf := r.factCounts()
	r.mu.Lock()
	d := make(map[domain.Stage]time.Duration, len(r.durations))
	for k, v := range r.durations {
		d[k] = v
	}
	r.mu.Unlock()
	return domain.Report{
		RunID:       r.ID,
		Status:      status,
		Keywords:    len(r.Keywords),
		Stories:     r.StoryRows,
		Hiring:      r.HiringRows,
		StoryFacts:  sf,
		HiringFacts: hf,
		Durations:   d,
	}
}
