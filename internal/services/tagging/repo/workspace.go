package repo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"hntrends/internal/core/textnorm"
	perr "hntrends/internal/platform/errors"
	"hntrends/internal/platform/logger"
	"hntrends/internal/platform/store"
	"hntrends/internal/platform/store/sqlite"
	"hntrends/internal/services/tagging/domain"

	"github.com/google/uuid"
)

// Workspace is the run-scoped SQLite search store
// Mirrored tables and their FTS5 indexes live in one temp database file removed on Close
type Workspace struct {
	db      *sqlite.DB
	columns map[string][]string
}

var _ domain.WorkspacePort = (*Workspace)(nil)

// OpenWorkspace creates a fresh workspace file in dir
// readers is the number of concurrent match queries expected
func OpenWorkspace(ctx context.Context, dir string, readers int) (*Workspace, error) {
	if readers < 1 {
		readers = 1
	}
	db, err := sqlite.OpenTemp(ctx, dir, "hntrends-ws", sqlite.WithMaxConns(readers+1))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "open workspace")
	}
	logger.C(ctx).Debug().Str("path", db.Path).Msg("tagging: workspace opened")
	return &Workspace{db: db, columns: map[string][]string{}}, nil
}

// Path is the workspace database file
func (w *Workspace) Path() string { return w.db.Path }

// Close removes the workspace
func (w *Workspace) Close() error { return w.db.Close() }

// Mirror drops any previous copy of c and recreates it from src
// The copy keeps the source column names; every row is inserted in one transaction
func (w *Workspace) Mirror(ctx context.Context, c domain.Corpus, src domain.SourcePort) (int, error) {
	local := c.LocalName()
	tbl := sqlite.QuoteIdent(local)

	for _, stmt := range []string{
		"DROP TABLE IF EXISTS " + sqlite.QuoteIdent(c.IndexName()),
		"DROP TABLE IF EXISTS " + tbl,
	} {
		if _, err := w.db.ExecContext(ctx, stmt); err != nil {
			return 0, wsErr(err, c, "drop")
		}
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wsErr(err, c, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	var (
		ins  *sql.Stmt
		cols []string
		n    int
	)
	header := func(names []string) error {
		cols = append([]string(nil), names...)
		quoted := make([]string, len(cols))
		marks := make([]string, len(cols))
		for i, name := range cols {
			quoted[i] = sqlite.QuoteIdent(name)
			marks[i] = "?"
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", tbl, strings.Join(quoted, ", "))); err != nil {
			return wsErr(err, c, "create")
		}
		var err error
		ins, err = tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			tbl, strings.Join(quoted, ", "), strings.Join(marks, ", ")))
		if err != nil {
			return wsErr(err, c, "prepare")
		}
		return nil
	}
	args := []any{}
	row := func(vals []any) error {
		args = args[:0]
		for _, v := range vals {
			args = append(args, workspaceValue(v))
		}
		if _, err := ins.ExecContext(ctx, args...); err != nil {
			return wsErr(err, c, "insert")
		}
		n++
		return nil
	}

	if err := src.Stream(ctx, c.Table, header, row); err != nil {
		return 0, err
	}
	if ins != nil {
		_ = ins.Close()
	}
	if cols == nil {
		return 0, perr.WithOp(perr.Internalf("source for %s reported no columns", c.Table), "tagging.mirror")
	}
	if missing := missingColumns(cols, c.Required()); len(missing) > 0 {
		return 0, perr.WithOp(perr.InvalidArgf("table %s is missing columns %s", c.Table, strings.Join(missing, ", ")), "tagging.mirror")
	}
	if err := tx.Commit(); err != nil {
		return 0, wsErr(err, c, "commit")
	}
	w.columns[local] = cols
	return n, nil
}

// BuildIndex recreates the FTS5 index over the mirrored text column
// The index rowid equals the mirrored rowid so matches join back without a scan
func (w *Workspace) BuildIndex(ctx context.Context, c domain.Corpus) error {
	if _, ok := w.columns[c.LocalName()]; !ok {
		return perr.WithOp(perr.Newf(perr.ErrorCodeInvalidArgument, "%s is not mirrored", c.Table), "tagging.index")
	}
	fts := sqlite.QuoteIdent(c.IndexName())
	stmts := []string{
		"DROP TABLE IF EXISTS " + fts,
		fmt.Sprintf(`CREATE VIRTUAL TABLE %s USING fts5(objectid UNINDEXED, body, tokenize = "%s")`, fts, textnorm.Tokenizer),
		fmt.Sprintf(`INSERT INTO %s (rowid, objectid, body) SELECT rowid, CAST(%s AS TEXT), coalesce(CAST(%s AS TEXT), '') FROM %s`,
			fts, sqlite.QuoteIdent(c.IDColumn), sqlite.QuoteIdent(c.TextColumn), sqlite.QuoteIdent(c.LocalName())),
	}
	for _, stmt := range stmts {
		if _, err := w.db.ExecContext(ctx, stmt); err != nil {
			return ctxErr(ctx, err, "tagging.index", "index "+c.Table)
		}
	}
	return nil
}

// MatchStories returns every story whose indexed text matches keyword
func (w *Workspace) MatchStories(ctx context.Context, c domain.Corpus, keyword string) ([]domain.StoryFact, error) {
	var out []domain.StoryFact
	err := w.match(ctx, c, keyword, []string{c.DateColumn, c.TitleColumn, c.MonthColumn}, func(id string, extra []sql.NullString) {
		out = append(out, domain.StoryFact{
			Keyword:        keyword,
			ObjectID:       id,
			SubmissionDate: extra[0].String,
			Title:          extra[1].String,
			YearMonth:      extra[2].String,
		})
	})
	return out, err
}

// MatchHiring returns every hiring comment whose indexed text matches keyword
func (w *Workspace) MatchHiring(ctx context.Context, c domain.Corpus, keyword string) ([]domain.HiringFact, error) {
	var out []domain.HiringFact
	err := w.match(ctx, c, keyword, []string{c.MonthColumn}, func(id string, extra []sql.NullString) {
		out = append(out, domain.HiringFact{Keyword: keyword, ObjectID: id, YearMonth: extra[0].String})
	})
	return out, err
}

// matchSQL selects the item id plus the given mirrored columns for every row with a bm25 score
// The MATCH expression is always bound, never interpolated
func matchSQL(c domain.Corpus, cols []string) string {
	fts := sqlite.QuoteIdent(c.IndexName())
	sel := make([]string, len(cols))
	for i, col := range cols {
		sel[i] = "CAST(t." + sqlite.QuoteIdent(col) + " AS TEXT)"
	}
	return fmt.Sprintf(`SELECT %[1]s.objectid, %[2]s
		  FROM %[1]s
		  JOIN %[3]s AS t ON t.rowid = %[1]s.rowid
		 WHERE %[1]s MATCH ?
		   AND bm25(%[1]s) IS NOT NULL`,
		fts, strings.Join(sel, ", "), sqlite.QuoteIdent(c.LocalName()))
}

func (w *Workspace) match(ctx context.Context, c domain.Corpus, keyword string, cols []string, emit func(id string, extra []sql.NullString)) error {
	expr, err := textnorm.MatchExpr(keyword)
	if err != nil {
		return perr.WithOp(perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "keyword %q", keyword), "tagging.match")
	}
	rows, err := w.db.QueryContext(ctx, matchSQL(c, cols), expr)
	if err != nil {
		return matchErr(ctx, err, c, keyword)
	}
	defer rows.Close()

	var id string
	extra := make([]sql.NullString, len(cols))
	dest := make([]any, 0, len(cols)+1)
	dest = append(dest, &id)
	for i := range extra {
		dest = append(dest, &extra[i])
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return matchErr(ctx, err, c, keyword)
		}
		emit(id, extra)
	}
	if err := rows.Err(); err != nil {
		return matchErr(ctx, err, c, keyword)
	}
	return nil
}

// workspaceValue converts a source value into something SQLite stores faithfully
// Dates keep YYYY-MM-DD; timestamps are always RFC3339 in UTC
func workspaceValue(v any) any {
	switch x := v.(type) {
	case nil, string, []byte, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return x
	case store.Date:
		return x.String()
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case [16]byte:
		return uuid.UUID(x).String()
	case driver.Valuer:
		if dv, err := x.Value(); err == nil {
			return workspaceValue(dv)
		}
		return fmt.Sprint(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func missingColumns(have, want []string) []string {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[strings.ToLower(h)] = struct{}{}
	}
	var missing []string
	for _, w := range want {
		if _, ok := set[strings.ToLower(w)]; !ok {
			missing = append(missing, w)
		}
	}
	return missing
}

func wsErr(err error, c domain.Corpus, statement string) error {
	return perr.WithOp(perr.Wrapf(err, perr.ErrorCodeDB, "mirror %s: %s", c.Table, statement), "tagging.mirror")
}

// ctxErr reports a cancelled or expired ctx as such, otherwise wraps err as a stage failure
func ctxErr(ctx context.Context, err error, op, msg string) error {
	if ctx.Err() != nil {
		return perr.WithOp(perr.FromContext(ctx.Err(), msg), op)
	}
	return perr.WithOp(perr.Wrap(err, perr.ErrorCodeDB, msg), op)
}

func matchErr(ctx context.Context, err error, c domain.Corpus, keyword string) error {
	return ctxErr(ctx, err, "tagging.match", fmt.Sprintf("match %s in %s", keyword, c.Table))
}
