// Package module wires up the keyword registry as a modkit.Module
package module

import (
	"hntrends/internal/modkit"
	modreg "hntrends/internal/modkit/module"
	"hntrends/internal/services/keywords/domain"
	kwrepo "hntrends/internal/services/keywords/repo"
	kwservice "hntrends/internal/services/keywords/service"
)

// Ports exported by the keywords module
type Ports struct {
	Reader domain.ReaderPort
	Seeder domain.SeederPort
}

// Module implements modkit.Module for the keyword registry
type Module struct {
	name  string
	opts  Options
	ports Ports
}

// New constructs and wires the keywords module using deps.Cfg
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build("keywords", "CORE_KEYWORDS_", opts...)
	svc := kwservice.New(deps.PG, kwrepo.NewPG())
	return &Module{
		name:  b.Name,
		opts:  FromConfig(deps.Cfg, b.Prefix),
		ports: Ports{Reader: svc, Seeder: svc},
	}
}

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Options returns the resolved module options
func (m *Module) Options() Options { return m.opts }

// Register convenience: allow others to resolve our ports via registry
func Register(deps modkit.Deps, opts ...modkit.Option) *Module {
	m := New(deps, opts...)
	modreg.Register(m.Name(), m.ports)
	return m
}
