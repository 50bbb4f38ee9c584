package module

import "hntrends/internal/platform/config"

// Options holds configuration for the rollup export
type Options struct {
	// Table is the ClickHouse rollup table, optionally database qualified
	Table string `validate:"required,sqlident"`
}

// FromConfig reads CORE_ROLLUP_TABLE (default keyword_monthly)
func FromConfig(cfg config.Conf, prefix string) Options {
	r := cfg.Prefix(prefix)
	return Options{
		Table: r.MayString("TABLE", "keyword_monthly"),
	}
}
