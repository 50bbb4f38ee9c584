// Package repo holds the tagging pipeline's storage implementations
// Postgres for the corpora, facts and ledger; SQLite for the run workspace
package repo

import (
	"context"

	"hntrends/internal/modkit/repokit"
	perr "hntrends/internal/platform/errors"
	"hntrends/internal/platform/store"
	"hntrends/internal/services/tagging/domain"
)

type (
	// Source is the Postgres corpus reader
	Source struct{}
	source struct{ q repokit.Queryer }
)

// NewSource returns a binder for the Postgres corpus reader
func NewSource() repokit.Binder[domain.SourcePort] { return Source{} }

// Bind attaches a Queryer to the reader
func (Source) Bind(q repokit.Queryer) domain.SourcePort { return &source{q: q} }

// Stream selects every column of table
// table is quoted as an identifier and may be schema qualified
func (s *source) Stream(ctx context.Context, table string, header func([]string) error, row func([]any) error) error {
	sql := "SELECT * FROM " + store.QuoteIdent(table)
	if err := store.Stream(ctx, s.q, sql, header, row); err != nil {
		if _, ok := perr.As(err); ok {
			return err
		}
		return perr.WithOp(perr.FromPostgresf(err, "read %s", table), "tagging.mirror")
	}
	return nil
}
