// Package repo provides the keyword_list repository
package repo

import (
	"context"

	"hntrends/internal/modkit/repokit"
	perr "hntrends/internal/platform/errors"
	"hntrends/internal/platform/store"
	"hntrends/internal/services/keywords/domain"
)

type (
	// PG is a Postgres implementation of the keyword repo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[domain.StorageRepo] { return PG{} }

// Bind attaches a Queryer to the Postgres implementation
func (PG) Bind(q repokit.Queryer) domain.StorageRepo { return &queries{q: q} }

// List returns every keyword ordered by token
func (r *queries) List(ctx context.Context) ([]domain.Keyword, error) {
	const sql = `
		SELECT keyword,
		       coalesce(display_name, ''),
		       coalesce(include_hiring, false),
		       coalesce(image_path, '')
		  FROM keyword_list
		 ORDER BY keyword`
	out, err := store.Many(ctx, r.q, scanKeyword, sql)
	if err != nil {
		return nil, perr.WithOp(perr.FromPostgres(err, "list keywords"), "keywords.list")
	}
	return out, nil
}

// Upsert inserts or refreshes one keyword row
func (r *queries) Upsert(ctx context.Context, k domain.Keyword) error {
	const sql = `
		INSERT INTO keyword_list (keyword, display_name, include_hiring, image_path)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (keyword) DO UPDATE
		   SET display_name   = EXCLUDED.display_name,
		       include_hiring = EXCLUDED.include_hiring,
		       image_path     = EXCLUDED.image_path`
	if err := store.ExecOne(ctx, r.q, sql, k.Token, k.DisplayName, k.IncludeHiring, k.ImagePath); err != nil {
		return perr.WithOp(perr.FromPostgresf(err, "upsert keyword %q", k.Token), "keywords.upsert")
	}
	return nil
}

func scanKeyword(row store.Row) (domain.Keyword, error) {
	var k domain.Keyword
	err := row.Scan(&k.Token, &k.DisplayName, &k.IncludeHiring, &k.ImagePath)
	return k, err
}
