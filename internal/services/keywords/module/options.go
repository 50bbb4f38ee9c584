package module

import "hntrends/internal/platform/config"

// Options for the keywords module
type Options struct {
	SeedFile string
}

// FromConfig fills options from environment
// CORE_KEYWORDS_SEED_FILE (default "keywords.yaml") is the file read by the admin seeding tool
func FromConfig(cfg config.Conf, prefix string) Options {
	k := cfg.Prefix(prefix)
	return Options{
		SeedFile: k.MayString("SEED_FILE", "keywords.yaml"),
	}
}
