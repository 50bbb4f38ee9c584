package modkit

import "hntrends/internal/modkit/repokit"

// Built is a plain struct with the fields modules care about
type Built struct {
	Name     string
	Prefix   string
	Ports    any
	MidHooks []repokit.MidHook
}

// Build applies Option funcs to an internal buildCfg and returns a plain struct
// name and prefix fall back to the given defaults
func Build(defName, defPrefix string, opts ...Option) Built {
	c := buildCfg{name: defName, prefix: defPrefix}
	for _, o := range opts {
		if o != nil {
			o(&c)
		}
	}
	return Built{
		Name:     c.name,
		Prefix:   c.prefix,
		Ports:    c.ports,
		MidHooks: append([]repokit.MidHook(nil), c.midHooks...),
	}
}
