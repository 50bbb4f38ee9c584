// Package module wires up the rollup export as a modkit.Module
package module

import (
	"hntrends/internal/modkit"
	modreg "hntrends/internal/modkit/module"
	"hntrends/internal/platform/validate"
	"hntrends/internal/services/rollup/domain"
	"hntrends/internal/services/rollup/repo"
	"hntrends/internal/services/rollup/service"
)

// Ports exported by the rollup module
type Ports struct {
	Exporter domain.ExporterPort
}

// Module implements modkit.Module for the rollup export
type Module struct {
	name  string
	opts  Options
	ports Ports
}

// New constructs and wires the rollup module using deps.Cfg
// deps.CH must be set and the table name must be a plain identifier; New panics otherwise
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	if deps.CH == nil {
		panic("rollup module requires a clickhouse store")
	}
	b := modkit.Build("rollup", "CORE_ROLLUP_", opts...)
	o := FromConfig(deps.Cfg, b.Prefix)
	if err := validate.Struct(o); err != nil {
		panic(err)
	}

	svc := service.New(deps.PG, repo.NewHybrid(deps.CH, o.Table), domain.DefaultCorpora())
	svc.Metrics = deps.Metrics

	return &Module{name: b.Name, opts: o, ports: Ports{Exporter: svc}}
}

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Options returns the resolved options
func (m *Module) Options() Options { return m.opts }

// Register convenience: allow others to resolve our ports via registry
func Register(deps modkit.Deps, opts ...modkit.Option) *Module {
	m := New(deps, opts...)
	modreg.Register(m.Name(), m.ports)
	return m
}
