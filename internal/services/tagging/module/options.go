package module

import (
	"time"

	"hntrends/internal/platform/config"
	"hntrends/internal/services/tagging/domain"
)

// Options holds configuration for the tagging pipeline
type Options struct {
	Workers int
	WorkDir string
	DryRun  bool

	StoriesTable string
	HiringTable  string

	MirrorTimeout time.Duration
	IndexTimeout  time.Duration
	MatchTimeout  time.Duration
	SyncTimeout   time.Duration

	// SyncLockTimeout bounds lock waits inside the sync transaction; 0 leaves the server default
	SyncLockTimeout time.Duration

	EnableLeases bool
	LeaseTTL     time.Duration

	// ExportRollups asks the refresh command to push monthly counts to ClickHouse after a successful sync
	ExportRollups bool
}

// FromConfig reads the tagging options under prefix (CORE_TAGGING_ by default)
func FromConfig(cfg config.Conf, prefix string) Options {
	tg := cfg.Prefix(prefix)
	return Options{
		Workers:         tg.MayInt("WORKERS", 4),
		WorkDir:         tg.MayString("WORKDIR", ""),
		DryRun:          tg.MayBool("DRY_RUN", false),
		StoriesTable:    tg.MayString("STORIES_TABLE", domain.DefaultStories().Table),
		HiringTable:     tg.MayString("HIRING_TABLE", domain.DefaultHiring().Table),
		MirrorTimeout:   tg.MayDuration("MIRROR_TIMEOUT", 0),
		IndexTimeout:    tg.MayDuration("INDEX_TIMEOUT", 0),
		MatchTimeout:    tg.MayDuration("MATCH_TIMEOUT", 0),
		SyncTimeout:     tg.MayDuration("SYNC_TIMEOUT", 0),
		SyncLockTimeout: tg.MayDuration("SYNC_LOCK_TIMEOUT", time.Minute),
		EnableLeases:    tg.MayBool("LEASES", true),
		LeaseTTL:        tg.MayDuration("LEASE_TTL", 2*time.Hour),
		ExportRollups:   tg.MayBool("EXPORT_ROLLUPS", false),
	}
}

// Corpora returns the corpus descriptors with configured table names applied
func (o Options) Corpora() (stories, hiring domain.Corpus, err error) {
	stories, hiring = domain.DefaultStories(), domain.DefaultHiring()
	if o.StoriesTable != "" {
		stories.Table = o.StoriesTable
	}
	if o.HiringTable != "" {
		hiring.Table = o.HiringTable
	}
	if err := stories.Validate(); err != nil {
		return stories, hiring, err
	}
	if err := hiring.Validate(); err != nil {
		return stories, hiring, err
	}
	return stories, hiring, nil
}
