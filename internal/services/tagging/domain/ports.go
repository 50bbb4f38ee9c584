package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunnerPort is the public entrypoint exposed by the module
type RunnerPort interface {
	// Run executes one full refresh: mirror, index, match, accumulate and sync
	Run(ctx context.Context) (Report, error)
}

// SourcePort streams a corpus table out of the transactional store
type SourcePort interface {
	// Stream reports the table's columns once, then every row in column order
	Stream(ctx context.Context, table string, header func(cols []string) error, row func(vals []any) error) error
}

// WorkspacePort is the run-scoped search store
type WorkspacePort interface {
	// Mirror replaces the workspace copy of c with the rows from src and returns the row count
	Mirror(ctx context.Context, c Corpus, src SourcePort) (int, error)

	// BuildIndex (re)creates the full-text index over c's text column
	BuildIndex(ctx context.Context, c Corpus) error

	// MatchStories returns one fact per story whose text matches keyword
	MatchStories(ctx context.Context, c Corpus, keyword string) ([]StoryFact, error)

	// MatchHiring returns one fact per hiring comment whose text matches keyword
	MatchHiring(ctx context.Context, c Corpus, keyword string) ([]HiringFact, error)

	// Close releases the workspace and removes its files
	Close() error
}

// SyncPort replaces both fact tables in one transaction
type SyncPort interface {
	Replace(ctx context.Context, stories []StoryFact, hiring []HiringFact) error
}

// LedgerRepo records runs in tag_runs
type LedgerRepo interface {
	Start(ctx context.Context, runID uuid.UUID, startedAt time.Time) error
	Finish(ctx context.Context, runID uuid.UUID, out RunOutcome) error
	Last(ctx context.Context) (RunRecord, error)
}
