package modkit

import "hntrends/internal/modkit/repokit"

// Option mutates build configuration for a module
type Option func(*buildCfg)

// buildCfg is internal wiring state for options
type buildCfg struct {
	name     string
	prefix   string
	ports    any
	midHooks []repokit.MidHook
}

// WithName sets a module name used in logs and registry
func WithName(name string) Option {
	return func(c *buildCfg) { c.name = name }
}

// WithPrefix overrides the env prefix a module reads its options from
func WithPrefix(prefix string) Option {
	return func(c *buildCfg) { c.prefix = prefix }
}

// WithPorts injects cross module ports declared by another module
// the concrete type is owned by the importing module
func WithPorts[T any](p T) Option {
	return func(c *buildCfg) { c.ports = p }
}

// WithMidHooks installs hooks a module runs inside its write transaction
// used by tests to inject faults between statements
func WithMidHooks(hooks ...repokit.MidHook) Option {
	return func(c *buildCfg) { c.midHooks = append(c.midHooks, hooks...) }
}
