// Package domain defines the tagging pipeline types and ports
package domain

import (
	"strings"
	"time"

	perr "hntrends/internal/platform/errors"
	"hntrends/internal/platform/validate"

	"github.com/google/uuid"
)

// CorpusKind names one of the two searchable corpora
type CorpusKind string

const (
	// Stories is the story title corpus
	Stories CorpusKind = "stories"
	// Hiring is the hiring-thread comment corpus
	Hiring CorpusKind = "hiring"
)

// Corpus describes where a corpus lives and which columns matter
// DateColumn and TitleColumn are only used for stories
type Corpus struct {
	Kind        CorpusKind
	Table       string `validate:"required,sqlident"`
	IDColumn    string `validate:"required,sqlident"`
	TextColumn  string `validate:"required,sqlident"`
	MonthColumn string `validate:"required,sqlident"`
	DateColumn  string `validate:"omitempty,sqlident"`
	TitleColumn string `validate:"omitempty,sqlident"`
}

// DefaultStories is the stories corpus layout written by the fetchers
func DefaultStories() Corpus {
	return Corpus{
		Kind:        Stories,
		Table:       "stories",
		IDColumn:    "objectid",
		TextColumn:  "title",
		MonthColumn: "year_month",
		DateColumn:  "submission_date",
		TitleColumn: "title",
	}
}

// DefaultHiring is the hiring comment corpus layout
func DefaultHiring() Corpus {
	return Corpus{
		Kind:        Hiring,
		Table:       "hiring_comments",
		IDColumn:    "objectid",
		TextColumn:  "comment_text",
		MonthColumn: "year_month",
	}
}

// Validate checks that every configured name is a plain sql identifier
func (c Corpus) Validate() error {
	if err := validate.Struct(c); err != nil {
		return perr.WithOp(err, "tagging.corpus."+string(c.Kind))
	}
	return nil
}

// LocalName is the unqualified table name used inside the workspace
func (c Corpus) LocalName() string {
	if i := strings.LastIndexByte(c.Table, '.'); i >= 0 {
		return c.Table[i+1:]
	}
	return c.Table
}

// IndexName is the full-text index table built for the corpus
func (c Corpus) IndexName() string { return c.LocalName() + "_fts" }

// Required lists the columns that must exist after mirroring
func (c Corpus) Required() []string {
	cols := []string{c.IDColumn, c.TextColumn, c.MonthColumn}
	for _, extra := range []string{c.DateColumn, c.TitleColumn} {
		if extra != "" {
			cols = append(cols, extra)
		}
	}
	return cols
}

// FactKey is the identity of a fact row
type FactKey struct {
	Keyword  string
	ObjectID string
}

// Less orders keys by keyword then item id
func (k FactKey) Less(o FactKey) bool {
	if k.Keyword != o.Keyword {
		return k.Keyword < o.Keyword
	}
	return k.ObjectID < o.ObjectID
}

// StoryFact records that a story title mentions a keyword
type StoryFact struct {
	Keyword        string
	ObjectID       string
	SubmissionDate string
	Title          string
	YearMonth      string
}

// Key returns the fact identity
func (f StoryFact) Key() FactKey { return FactKey{Keyword: f.Keyword, ObjectID: f.ObjectID} }

// HiringFact records that a hiring comment mentions a keyword
type HiringFact struct {
	Keyword   string
	ObjectID  string
	YearMonth string
}

// Key returns the fact identity
func (f HiringFact) Key() FactKey { return FactKey{Keyword: f.Keyword, ObjectID: f.ObjectID} }

// Stage names a pipeline phase in logs, metrics and errors
type Stage string

const (
	StageLease    Stage = "lease"
	StageKeywords Stage = "keywords"
	StageMirror   Stage = "mirror"
	StageIndex    Stage = "index"
	StageMatch    Stage = "match"
	StageSync     Stage = "sync"
)

// RunStatus is the final state recorded in the run ledger
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunDryRun    RunStatus = "dry_run"
)

// Report summarizes one pipeline run
type Report struct {
	RunID       uuid.UUID
	Status      RunStatus
	Keywords    int
	Stories     int
	Hiring      int
	StoryFacts  int
	HiringFacts int
	Durations   map[Stage]time.Duration
}

// RunOutcome is what the ledger stores when a run finishes
type RunOutcome struct {
	Status      RunStatus
	FinishedAt  time.Time
	Keywords    int
	StoryFacts  int
	HiringFacts int
	ErrText     string
}

// RunRecord is one row of the run ledger
type RunRecord struct {
	RunID     uuid.UUID
	StartedAt time.Time
	RunOutcome
}
