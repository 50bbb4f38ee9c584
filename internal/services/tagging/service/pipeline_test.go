package service

import (
	"context"
	"reflect"
	"testing"
	"time"

	"hntrends/internal/modkit/repokit"
	"hntrends/internal/platform/store"
	"hntrends/internal/platform/testkit/fakepg"
	kwdomain "hntrends/internal/services/keywords/domain"
	"hntrends/internal/services/tagging/domain"
	"hntrends/internal/services/tagging/repo"
)

// tableSource serves in-memory corpora to the real workspace
type tableSource map[string][][]any

var tableCols = map[string][]string{
	"stories":         {"objectid", "title", "submission_date", "year_month"},
	"hiring_comments": {"objectid", "comment_text", "created_at", "year_month"},
}

func (s tableSource) Stream(_ context.Context, table string, header func([]string) error, row func([]any) error) error {
	if err := header(tableCols[table]); err != nil {
		return err
	}
	for _, r := range s[table] {
		if err := row(r); err != nil {
			return err
		}
	}
	return nil
}

func TestPipeline_RealWorkspaceEndToEnd(t *testing.T) {
	d := func(s string) store.Date { v, _ := time.Parse(time.DateOnly, s); return store.Date(v) }
	src := tableSource{
		"stories": {
			{"1", "Show HN: a Rust web server", d("2024-01-05"), "2024-01"},
			{"2", "Kotlin Multiplatform in production", d("2024-01-06"), "2024-01"},
			{"3", "Why C++ still matters", d("2024-02-01"), "2024-02"},
			{"4", "Trusting the compiler", d("2024-02-02"), "2024-02"},
		},
		"hiring_comments": {
			{"h1", "Acme | Rust, Kotlin | Remote", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), "2024-01"},
			{"h2", "Initech | C++ | NYC", time.Date(2024, 2, 2, 3, 4, 5, 0, time.UTC), "2024-02"},
		},
	}
	kw := &fakeKeywords{list: []kwdomain.Keyword{
		{Token: "c++", IncludeHiring: true},
		{Token: "kotlin"},
		{Token: "rust", IncludeHiring: true},
	}}

	pg := fakepg.WithCopy(&fakepg.DB{})
	copied := map[string][][]any{}
	pg.OnCopy = func(table string, _ []string, rows [][]any) (int64, error) {
		copied[table] = rows
		return int64(len(rows)), nil
	}

	source := repokit.BindFunc[domain.SourcePort](func(repokit.Queryer) domain.SourcePort { return src })
	open := func(ctx context.Context, dir string, readers int) (domain.WorkspacePort, error) {
		return repo.OpenWorkspace(ctx, dir, readers)
	}
	svc := New(pg, kw, source, open, repo.NewSync(pg), Config{Workers: 3, WorkDir: t.TempDir()})

	rep, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.StoryFacts != 3 || rep.HiringFacts != 2 {
		t.Fatalf("report = %+v", rep)
	}

	st := copied["keywords"]
	want := [][]any{
		{"c++", "3", "2024-02-01", "Why C++ still matters", "2024-02"},
		{"kotlin", "2", "2024-01-06", "Kotlin Multiplatform in production", "2024-01"},
		{"rust", "1", "2024-01-05", "Show HN: a Rust web server", "2024-01"},
	}
	if len(st) != len(want) {
		t.Fatalf("story rows = %v", st)
	}
	for i := range want {
		for j := range want[i] {
			if st[i][j] != want[i][j] {
				t.Fatalf("story row %d = %v, want %v", i, st[i], want[i])
			}
		}
	}

	hi := copied["hiring_keywords"]
	if len(hi) != 2 || hi[0][0] != "c++" || hi[0][1] != "h2" || hi[1][0] != "rust" || hi[1][1] != "h1" {
		t.Fatalf("hiring rows = %v", hi)
	}
	if pg.Commits() != 1 {
		t.Fatalf("commits = %d", pg.Commits())
	}

	// same inputs, same rows
	first := map[string][][]any{"keywords": st, "hiring_keywords": hi}
	copied = map[string][][]any{}
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !reflect.DeepEqual(copied, first) {
		t.Fatalf("second run wrote different rows:\n%v\n%v", first, copied)
	}
	if pg.Commits() != 2 {
		t.Fatalf("commits = %d", pg.Commits())
	}
}
