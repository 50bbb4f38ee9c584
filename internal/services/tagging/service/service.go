// Package service provides the tagging pipeline implementation
package service

import (
	"context"
	"time"

	"hntrends/internal/modkit/repokit"
	perr "hntrends/internal/platform/errors"
	"hntrends/internal/platform/logger"
	"hntrends/internal/platform/metrics"
	kwdomain "hntrends/internal/services/keywords/domain"
	"hntrends/internal/services/tagging/domain"
	"hntrends/internal/services/tagging/guardrails"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Config controls concurrency, corpora and budgets
type Config struct {
	// Workers bounds concurrent match queries
	Workers int

	// DryRun computes facts but skips the sync
	DryRun bool

	// WorkDir holds the run workspace file; empty means the OS temp dir
	WorkDir string

	Stories domain.Corpus
	Hiring  domain.Corpus

	Timeouts guardrails.Timeouts
}

// WorkspaceOpener creates the run-scoped search store
type WorkspaceOpener func(ctx context.Context, dir string, readers int) (domain.WorkspacePort, error)

// Service wires the pipeline stages together
type Service struct {
	DB        repokit.TxRunner
	Keywords  kwdomain.ReaderPort
	Source    repokit.Binder[domain.SourcePort]
	Workspace WorkspaceOpener
	Sync      domain.SyncPort
	Cfg       Config

	// optional
	Ledger  repokit.Binder[domain.LedgerRepo]
	Lease   guardrails.LeaseFunc
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// New constructs the tagging service
func New(
	db repokit.TxRunner,
	keywords kwdomain.ReaderPort,
	source repokit.Binder[domain.SourcePort],
	ws WorkspaceOpener,
	sync domain.SyncPort,
	cfg Config,
) *Service {
	if db == nil {
		panic("tagging.Service requires a non nil TxRunner")
	}
	if keywords == nil || source == nil || ws == nil || sync == nil {
		panic("tagging.Service requires keywords, source, workspace and sync")
	}
	if cfg.Stories.Table == "" {
		cfg.Stories = domain.DefaultStories()
	}
	if cfg.Hiring.Table == "" {
		cfg.Hiring = domain.DefaultHiring()
	}
	return &Service{DB: db, Keywords: keywords, Source: source, Workspace: ws, Sync: sync, Cfg: cfg, Now: time.Now}
}

func (s *Service) workers() int {
	if s.Cfg.Workers <= 0 {
		return 4
	}
	return s.Cfg.Workers
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Run executes one full refresh under the run lease
// Any failure before the sync leaves the fact tables untouched; a sync failure rolls both back
func (s *Service) Run(ctx context.Context) (domain.Report, error) {
	run := newRun(uuid.New(), s.now())
	ctx = logger.WithRun(ctx, run.ID.String())
	log := logger.C(ctx)
	log.Info().
		Int("workers", s.workers()).
		Bool("dry_run", s.Cfg.DryRun).
		Str("stories_table", s.Cfg.Stories.Table).
		Str("hiring_table", s.Cfg.Hiring.Table).
		Msg("tagging: run start")

	var err error
	if s.Lease != nil {
		t0 := time.Now()
		err = s.Lease(ctx, func(ctx context.Context) error {
			run.addDuration(domain.StageLease, time.Since(t0))
			return s.execute(ctx, run)
		})
	} else {
		err = s.execute(ctx, run)
	}

	status := s.status(run, err)
	rep := run.report(status)
	s.record(rep, err)

	if err != nil {
		log.Error().Err(err).
			Str("op", perr.OpOf(err)).
			Str("code", perr.CodeOf(err).String()).
			Msg("tagging: run failed")
		return rep, err
	}
	log.Info().
		Str("status", string(status)).
		Int("keywords", rep.Keywords).
		Int("stories", rep.Stories).
		Int("hiring", rep.Hiring).
		Int("story_facts", rep.StoryFacts).
		Int("hiring_facts", rep.HiringFacts).
		Dur("took", time.Since(run.Started)).
		Msg("tagging: run done")
	return rep, nil
}

func (s *Service) status(run *Run, err error) domain.RunStatus {
	switch {
	case err != nil:
		return domain.RunFailed
	case s.Cfg.DryRun:
		return domain.RunDryRun
	case run.synced:
		return domain.RunSucceeded
	}
	return domain.RunFailed
}

// execute runs the phases in order: keywords, mirror+index for both corpora, match, sync
func (s *Service) execute(ctx context.Context, run *Run) (err error) {
	if s.Ledger != nil {
		if err := s.Ledger.Bind(s.DB).Start(ctx, run.ID, run.Started); err != nil {
			return err
		}
		defer func() { s.finishLedger(ctx, run, err) }()
	}
	defer run.close(ctx)

	if err := s.stage(ctx, run, domain.StageKeywords, func(ctx context.Context) error {
		list, err := s.Keywords.List(ctx)
		if err != nil {
			return err
		}
		run.setKeywords(list)
		return nil
	}); err != nil {
		return err
	}
	if len(run.Keywords) == 0 {
		logger.C(ctx).Warn().Msg("tagging: keyword list is empty, fact tables will be emptied")
	}

	ws, err := s.Workspace(ctx, s.Cfg.WorkDir, s.workers())
	if err != nil {
		return err
	}
	run.WS = ws
	run.onClose(ws.Close)

	// hard barrier: both corpora are mirrored and indexed before any match starts
	src := s.Source.Bind(s.DB)
	for _, c := range []domain.Corpus{s.Cfg.Stories, s.Cfg.Hiring} {
		var n int
		if err := s.stage(ctx, run, domain.StageMirror, func(ctx context.Context) error {
			var err error
			n, err = ws.Mirror(ctx, c, src)
			return err
		}); err != nil {
			return err
		}
		if c.Kind == domain.Hiring {
			run.HiringRows = n
		} else {
			run.StoryRows = n
		}
		logger.C(ctx).Info().Str("corpus", string(c.Kind)).Int("rows", n).Msg("tagging: corpus mirrored")

		if err := s.stage(ctx, run, domain.StageIndex, func(ctx context.Context) error {
			return ws.BuildIndex(ctx, c)
		}); err != nil {
			return err
		}
	}

	if err := s.stage(ctx, run, domain.StageMatch, func(ctx context.Context) error {
		return s.match(ctx, run)
	}); err != nil {
		return err
	}

	sf, hf := run.factCounts()
	if s.Cfg.DryRun {
		logger.C(ctx).Info().Int("story_facts", sf).Int("hiring_facts", hf).Msg("tagging: dry run, sync skipped")
		return nil
	}

	if err := s.stage(ctx, run, domain.StageSync, func(ctx context.Context) error {
		return s.Sync.Replace(ctx, run.Stories.Facts(), run.Hiring.Facts())
	}); err != nil {
		return err
	}
	run.synced = true
	return nil
}

// match runs one query per keyword per corpus on a bounded pool; the first failure cancels the rest
func (s *Service) match(ctx context.Context, run *Run) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for _, k := range run.Keywords {
		g.Go(func() error {
			facts, err := run.WS.MatchStories(gctx, s.Cfg.Stories, k.Token)
			if err != nil {
				return err
			}
			return run.Stories.AddAll(facts)
		})
		if !k.IncludeHiring {
			continue
		}
		g.Go(func() error {
			facts, err := run.WS.MatchHiring(gctx, s.Cfg.Hiring, k.Token)
			if err != nil {
				return err
			}
			return run.Hiring.AddAll(facts)
		})
	}
	return g.Wait()
}

// stage runs fn under the stage budget, timing it and tagging logs with the stage
// An expired stage budget is reported as a timeout of that stage
func (s *Service) stage(ctx context.Context, run *Run, st domain.Stage, fn func(context.Context) error) error {
	sctx, cancel := guardrails.ForStage(logger.WithStage(ctx, string(st)), s.Cfg.Timeouts, st)
	defer cancel()

	t0 := time.Now()
	err := fn(sctx)
	d := time.Since(t0)
	run.addDuration(st, d)
	s.Metrics.ObserveStage(string(st), d)

	if err == nil {
		return nil
	}
	switch {
	case sctx.Err() != nil && ctx.Err() == nil && !perr.IsCode(err, perr.ErrorCodeTimeout):
		err = perr.WithOp(perr.Wrapf(err, perr.ErrorCodeTimeout, "%s exceeded %s", st, s.Cfg.Timeouts.For(st)), "tagging."+string(st))
	case ctx.Err() != nil && perr.CodeOf(err) == perr.ErrorCodeUnknown:
		err = perr.WithOp(perr.FromContext(err, string(st)+" interrupted"), "tagging."+string(st))
	}
	logger.C(sctx).Error().Err(err).Dur("took", d).Msgf("tagging: %s failed", st)
	return err
}

func (s *Service) finishLedger(ctx context.Context, run *Run, err error) {
	out := domain.RunOutcome{
		Status:     s.status(run, err),
		FinishedAt: s.now(),
		Keywords:   len(run.Keywords),
	}
	if err == nil {
		out.StoryFacts, out.HiringFacts = run.factCounts()
	} else {
		out.ErrText = err.Error()
	}
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if e := s.Ledger.Bind(s.DB).Finish(fctx, run.ID, out); e != nil {
		logger.C(ctx).Warn().Err(e).Msg("tagging: ledger finish failed")
	}
}

func (s *Service) record(rep domain.Report, err error) {
	m := s.Metrics
	if m == nil {
		return
	}
	label := string(rep.Status)
	if guardrails.IsLeaseHeld(err) {
		label = "lease_held"
	}
	m.Runs.WithLabelValues(label).Inc()
	m.Keywords.Set(float64(rep.Keywords))
	m.CorpusRows.WithLabelValues(string(domain.Stories)).Set(float64(rep.Stories))
	m.CorpusRows.WithLabelValues(string(domain.Hiring)).Set(float64(rep.Hiring))
	if rep.Status == domain.RunSucceeded {
		m.Facts.WithLabelValues(string(domain.Stories)).Set(float64(rep.StoryFacts))
		m.Facts.WithLabelValues(string(domain.Hiring)).Set(float64(rep.HiringFacts))
		m.LastSuccess.SetToCurrentTime()
	}
}
