package repo

import (
	"context"
	"errors"
	"os"
	"sort"
	"testing"
	"time"

	perr "hntrends/internal/platform/errors"
	"hntrends/internal/platform/store"
	"hntrends/internal/services/tagging/domain"
)

// memSource serves fixed tables to Mirror
type memSource struct {
	cols map[string][]string
	rows map[string][][]any
	err  error
}

func (m memSource) Stream(_ context.Context, table string, header func([]string) error, row func([]any) error) error {
	if m.err != nil {
		return m.err
	}
	cols, ok := m.cols[table]
	if !ok {
		return perr.NotFoundf("no table %s", table)
	}
	if err := header(cols); err != nil {
		return err
	}
	for _, r := range m.rows[table] {
		if err := row(r); err != nil {
			return err
		}
	}
	return nil
}

var (
	storyCols  = []string{"objectid", "title", "url", "author", "points", "num_comments", "submission_date", "year_month"}
	hiringCols = []string{"objectid", "parent_id", "author", "comment_text", "created_at", "year_month"}
)

func day(s string) store.Date {
	t, _ := time.Parse(time.DateOnly, s)
	return store.Date(t)
}

func fixture() memSource {
	return memSource{
		cols: map[string][]string{"stories": storyCols, "hiring_comments": hiringCols},
		rows: map[string][][]any{
			"stories": {
				{"1", "Rust is fast", "https://a", "ann", int64(10), int64(2), day("2024-01-03"), "2024-01"},
				{"2", "Kotlin tips", nil, "bob", int64(5), int64(0), day("2024-02-10"), "2024-02"},
				{"3", "Why C++ still matters", nil, "cat", int64(7), int64(1), day("2024-02-11"), "2024-02"},
				{"4", "C# 12 features", nil, "dan", int64(3), int64(0), day("2024-03-01"), "2024-03"},
				{"5", "Trusty old tools", nil, "eve", int64(1), int64(0), day("2024-03-02"), "2024-03"},
				{"6", nil, nil, "fay", int64(0), int64(0), day("2024-03-03"), "2024-03"},
				{"7", "rust, RUST and Rust!", nil, "gus", int64(9), int64(4), day("2024-03-04"), "2024-03"},
			},
			"hiring_comments": {
				{"h1", "p1", "acme", "Acme | Rust and Go | Remote", time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC), "2024-01"},
				{"h2", "p1", "init", "Kotlin, Java; onsite", time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC), "2024-01"},
				{"h3", "p2", "zed", "We write C and c++", time.Date(2024, 2, 1, 0, 0, 1, 0, time.UTC), "2024-02"},
			},
		},
	}
}

func openIndexed(t *testing.T) (*Workspace, domain.Corpus, domain.Corpus) {
	t.Helper()
	ctx := context.Background()
	ws, err := OpenWorkspace(ctx, t.TempDir(), 2)
	if err != nil {
		t.Fatalf("OpenWorkspace: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })

	src := fixture()
	st, hc := domain.DefaultStories(), domain.DefaultHiring()
	for _, c := range []domain.Corpus{st, hc} {
		if _, err := ws.Mirror(ctx, c, src); err != nil {
			t.Fatalf("Mirror %s: %v", c.Table, err)
		}
		if err := ws.BuildIndex(ctx, c); err != nil {
			t.Fatalf("BuildIndex %s: %v", c.Table, err)
		}
	}
	return ws, st, hc
}

func storyIDs(fs []domain.StoryFact) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.ObjectID)
	}
	sort.Strings(out)
	return out
}

func TestWorkspace_MirrorCountsRows(t *testing.T) {
	ctx := context.Background()
	ws, err := OpenWorkspace(ctx, t.TempDir(), 1)
	if err != nil {
		t.Fatalf("OpenWorkspace: %v", err)
	}
	defer ws.Close()

	n, err := ws.Mirror(ctx, domain.DefaultStories(), fixture())
	if err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	if n != 7 {
		t.Fatalf("mirrored %d rows, want 7", n)
	}
	// a second mirror replaces rather than appends
	if n, err = ws.Mirror(ctx, domain.DefaultStories(), fixture()); err != nil || n != 7 {
		t.Fatalf("re-mirror = %d, %v", n, err)
	}
	var count int
	if err := ws.db.QueryRowContext(ctx, `SELECT count(*) FROM "stories"`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 7 {
		t.Fatalf("local copy has %d rows after re-mirror", count)
	}
}

func TestWorkspace_MatchIsTokenExact(t *testing.T) {
	ws, st, _ := openIndexed(t)
	ctx := context.Background()

	got, err := ws.MatchStories(ctx, st, "rust")
	if err != nil {
		t.Fatalf("MatchStories: %v", err)
	}
	// "Trusty" must not match; repeated mentions produce one fact
	if ids := storyIDs(got); len(ids) != 2 || ids[0] != "1" || ids[1] != "7" {
		t.Fatalf("rust matched %v", ids)
	}
	for _, f := range got {
		if f.Keyword != "rust" {
			t.Fatalf("keyword = %q", f.Keyword)
		}
		if f.ObjectID == "1" && (f.SubmissionDate != "2024-01-03" || f.Title != "Rust is fast" || f.YearMonth != "2024-01") {
			t.Fatalf("story 1 fact = %+v", f)
		}
	}

	got, err = ws.MatchStories(ctx, st, "kotlin")
	if err != nil {
		t.Fatalf("MatchStories: %v", err)
	}
	if ids := storyIDs(got); len(ids) != 1 || ids[0] != "2" {
		t.Fatalf("kotlin matched %v", ids)
	}
}

func TestWorkspace_SymbolKeywords(t *testing.T) {
	ws, st, _ := openIndexed(t)
	ctx := context.Background()

	cases := map[string][]string{
		"c++": {"3"},
		"c#":  {"4"},
		"C#":  {"4"},
		"go":  nil,
	}
	for kw, want := range cases {
		got, err := ws.MatchStories(ctx, st, kw)
		if err != nil {
			t.Fatalf("MatchStories(%q): %v", kw, err)
		}
		ids := storyIDs(got)
		if len(ids) != len(want) {
			t.Fatalf("%q matched %v, want %v", kw, ids, want)
		}
		for i := range want {
			if ids[i] != want[i] {
				t.Fatalf("%q matched %v, want %v", kw, ids, want)
			}
		}
	}
}

func TestWorkspace_MatchHiring(t *testing.T) {
	ws, _, hc := openIndexed(t)
	ctx := context.Background()

	got, err := ws.MatchHiring(ctx, hc, "rust")
	if err != nil {
		t.Fatalf("MatchHiring: %v", err)
	}
	if len(got) != 1 || got[0].ObjectID != "h1" || got[0].YearMonth != "2024-01" {
		t.Fatalf("rust hiring = %+v", got)
	}
	got, err = ws.MatchHiring(ctx, hc, "c++")
	if err != nil {
		t.Fatalf("MatchHiring: %v", err)
	}
	if len(got) != 1 || got[0].ObjectID != "h3" {
		t.Fatalf("c++ hiring = %+v", got)
	}
}

func TestWorkspace_RebuildIsIdempotent(t *testing.T) {
	ws, st, _ := openIndexed(t)
	ctx := context.Background()

	first, err := ws.MatchStories(ctx, st, "rust")
	if err != nil {
		t.Fatalf("MatchStories: %v", err)
	}
	if _, err := ws.Mirror(ctx, st, fixture()); err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	if err := ws.BuildIndex(ctx, st); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	second, err := ws.MatchStories(ctx, st, "rust")
	if err != nil {
		t.Fatalf("MatchStories: %v", err)
	}
	a, b := storyIDs(first), storyIDs(second)
	if len(a) != len(b) {
		t.Fatalf("rebuild changed matches: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("rebuild changed matches: %v vs %v", a, b)
		}
	}
}

func TestWorkspace_MissingColumns(t *testing.T) {
	ctx := context.Background()
	ws, err := OpenWorkspace(ctx, t.TempDir(), 1)
	if err != nil {
		t.Fatalf("OpenWorkspace: %v", err)
	}
	defer ws.Close()

	src := memSource{
		cols: map[string][]string{"stories": {"objectid", "headline"}},
		rows: map[string][][]any{"stories": {{"1", "hi"}}},
	}
	_, err = ws.Mirror(ctx, domain.DefaultStories(), src)
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if err := ws.BuildIndex(ctx, domain.DefaultStories()); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("index over unmirrored corpus should fail, got %v", err)
	}
}

func TestWorkspace_SourceErrorPropagates(t *testing.T) {
	ctx := context.Background()
	ws, err := OpenWorkspace(ctx, t.TempDir(), 1)
	if err != nil {
		t.Fatalf("OpenWorkspace: %v", err)
	}
	defer ws.Close()

	boom := perr.New(perr.ErrorCodeUnavailable, "pg gone")
	_, err = ws.Mirror(ctx, domain.DefaultStories(), memSource{err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
}

func TestWorkspace_MatchRejectsEmptyKeyword(t *testing.T) {
	ws, st, _ := openIndexed(t)
	_, err := ws.MatchStories(context.Background(), st, "..")
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) || perr.OpOf(err) != "tagging.match" {
		t.Fatalf("expected invalid argument from match, got %v", err)
	}
}

func TestWorkspace_CanceledMatch(t *testing.T) {
	ws, st, _ := openIndexed(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ws.MatchStories(ctx, st, "rust")
	if !perr.IsCode(err, perr.ErrorCodeCanceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestWorkspace_CloseRemovesFile(t *testing.T) {
	ws, err := OpenWorkspace(context.Background(), t.TempDir(), 1)
	if err != nil {
		t.Fatalf("OpenWorkspace: %v", err)
	}
	p := ws.Path()
	if err := ws.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("workspace file still present: %v", err)
	}
}

type stringer struct{}

func (stringer) String() string { return "s" }

func TestWorkspaceValue(t *testing.T) {
	id := [16]byte{0x12, 0x34}
	cases := []struct {
		in   any
		want any
	}{
		{nil, nil},
		{"x", "x"},
		{int64(3), int64(3)},
		{day("2024-05-06"), "2024-05-06"},
		{time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), "2024-05-06T00:00:00Z"},
		{time.Date(2024, 5, 6, 2, 0, 0, 0, time.FixedZone("x", 7200)), "2024-05-06T00:00:00Z"},
		{time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC), "2024-05-06T07:08:09Z"},
		{id, "12340000-0000-0000-0000-000000000000"},
		{stringer{}, "s"},
		{struct{ A int }{1}, "{1}"},
	}
	for _, c := range cases {
		if got := workspaceValue(c.in); got != c.want {
			t.Fatalf("workspaceValue(%#v) = %#v, want %#v", c.in, got, c.want)
		}
	}
}

func TestWorkspace_SharpSMatchesLikeTheIndex(t *testing.T) {
	ctx := context.Background()
	ws, err := OpenWorkspace(ctx, t.TempDir(), 1)
	if err != nil {
		t.Fatalf("OpenWorkspace: %v", err)
	}
	defer ws.Close()

	src := memSource{
		cols: map[string][]string{"stories": storyCols},
		rows: map[string][][]any{"stories": {
			{"1", "Straße names in Go", nil, "ann", int64(1), int64(0), day("2024-01-03"), "2024-01"},
			{"2", "Strasse guide", nil, "bob", int64(1), int64(0), day("2024-01-04"), "2024-01"},
		}},
	}
	st := domain.DefaultStories()
	if _, err := ws.Mirror(ctx, st, src); err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	if err := ws.BuildIndex(ctx, st); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	for kw, want := range map[string]string{"straße": "1", "strasse": "2"} {
		got, err := ws.MatchStories(ctx, st, kw)
		if err != nil {
			t.Fatalf("MatchStories(%q): %v", kw, err)
		}
		if ids := storyIDs(got); len(ids) != 1 || ids[0] != want {
			t.Fatalf("%q matched %v, want [%s]", kw, ids, want)
		}
	}
}
