// Package domain defines the monthly rollup export types and ports
package domain

import (
	"context"
	"time"
)

// Corpus names a fact table and the label its rows carry in ClickHouse
type Corpus struct {
	Name      string // stories | hiring
	FactTable string
}

// DefaultCorpora are the two fact tables written by the tagging sync
func DefaultCorpora() []Corpus {
	return []Corpus{
		{Name: "stories", FactTable: "keywords"},
		{Name: "hiring", FactTable: "hiring_keywords"},
	}
}

// MonthlyCount is the number of facts for one keyword in one month
type MonthlyCount struct {
	YearMonth   string
	Word        string
	Occurrences uint64
}

// Summary reports rows exported per corpus
type Summary struct {
	Rows       map[string]int
	ExportedAt time.Time
}

// ExporterPort is the public entrypoint exposed by the module
type ExporterPort interface {
	// Export recomputes monthly counts from the fact tables and replaces them in ClickHouse
	Export(ctx context.Context) (Summary, error)
}

// StorageRepo spans both stores: counts come from Postgres, rollups land in ClickHouse
type StorageRepo interface {
	// Counts aggregates a fact table by month and keyword
	Counts(ctx context.Context, c Corpus) ([]MonthlyCount, error)

	// Ensure creates the rollup table when missing
	Ensure(ctx context.Context) error

	// Replace drops the corpus slice and inserts rows in its place
	Replace(ctx context.Context, c Corpus, rows []MonthlyCount, exportedAt time.Time) error
}
