// Package module wires the tagging pipeline as a modkit.Module
package module

import (
	"context"

	"hntrends/internal/modkit"
	modreg "hntrends/internal/modkit/module"
	"hntrends/internal/modkit/repokit"
	kwdomain "hntrends/internal/services/keywords/domain"
	kwmodule "hntrends/internal/services/keywords/module"
	kwrepo "hntrends/internal/services/keywords/repo"
	kwservice "hntrends/internal/services/keywords/service"
	"hntrends/internal/services/tagging/domain"
	"hntrends/internal/services/tagging/guardrails"
	"hntrends/internal/services/tagging/repo"
	"hntrends/internal/services/tagging/service"
)

// Ports defines the tagging module ports
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the tagging module
type Module struct {
	name  string
	opts  Options
	ports Ports
}

// New constructs the tagging module
// Keywords come from a registered keywords module when present, otherwise a private reader is built.
// Mid hooks passed with modkit.WithMidHooks run inside the sync transaction between the two tables.
// New panics when configured table names are not plain identifiers
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build("tagging", "CORE_TAGGING_", opts...)
	o := FromConfig(deps.Cfg, b.Prefix)

	stories, hiring, err := o.Corpora()
	if err != nil {
		panic(err)
	}

	keywords := keywordReader(deps)

	svc := service.New(
		deps.PG,
		keywords,
		repo.NewSource(),
		func(ctx context.Context, dir string, readers int) (domain.WorkspacePort, error) {
			return repo.OpenWorkspace(ctx, dir, readers)
		},
		repo.NewSync(syncDB(deps, o), b.MidHooks...),
		service.Config{
			Workers: o.Workers,
			DryRun:  o.DryRun,
			WorkDir: o.WorkDir,
			Stories: stories,
			Hiring:  hiring,
			Timeouts: guardrails.Timeouts{
				Mirror: o.MirrorTimeout,
				Index:  o.IndexTimeout,
				Match:  o.MatchTimeout,
				Sync:   o.SyncTimeout,
			},
		},
	)
	svc.Ledger = repo.NewLedger()
	svc.Metrics = deps.Metrics
	if o.EnableLeases {
		svc.Lease = guardrails.MakeRunLease(deps, "hntrends-refresh", o.LeaseTTL)
	}

	return &Module{name: b.Name, opts: o, ports: Ports{Runner: svc}}
}

func keywordReader(deps modkit.Deps) kwdomain.ReaderPort {
	if p, ok := modreg.PortsAs[kwmodule.Ports]("keywords"); ok && p.Reader != nil {
		return p.Reader
	}
	return kwservice.New(deps.PG, kwrepo.NewPG())
}

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Options returns the resolved options
func (m *Module) Options() Options { return m.opts }

// Register builds the module and publishes its ports
func Register(deps modkit.Deps, opts ...modkit.Option) *Module {
	m := New(deps, opts...)
	modreg.Register(m.Name(), m.ports)
	return m
}

// syncDB is the transaction runner for the fact sync, with the lock timeout applied at begin
func syncDB(deps modkit.Deps, o Options) repokit.TxRunner {
	if o.SyncLockTimeout <= 0 {
		return deps.PG
	}
	return repokit.WithBeginHooks(deps.PG, repo.LockTimeout(o.SyncLockTimeout))
}
