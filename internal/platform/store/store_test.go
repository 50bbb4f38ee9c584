package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// TestOpen_PGEnabled_BadURL_BubblesError covers the PG error path
func TestOpen_PGEnabled_BadURL_BubblesError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := Config{
		PG: PGConfig{
			Enabled:  true,
			URL:      "://bad", // parse error inside pg.Open
			MaxConns: 1,
		},
	}

	s, err := Open(ctx, cfg)
	if err == nil {
		t.Fatalf("expected Open error for bad PG URL, got store=%#v", s)
	}
	if s != nil {
		t.Fatalf("expected nil store on error, got %#v", s)
	}
}

// TestOpen_CHEnabled_BadURL_BubblesError covers the CH error path
func TestOpen_CHEnabled_BadURL_BubblesError(t *testing.T) {
	t.Parallel()

	s, err := Open(context.Background(), Config{CH: CHConfig{Enabled: true, URL: ""}})
	if err == nil || s != nil {
		t.Fatalf("expected CH open error, got store=%v err=%v", s, err)
	}
}

// TestOpen_OptionsApplied exercises the option path with no backends enabled
func TestOpen_OptionsApplied(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	var zl zerolog.Logger
	fake := &fakeTxWithPing{}
	s, err := Open(ctx, Config{}, WithLogger(zl), WithPG(fake))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if s.PG != fake {
		t.Fatalf("WithPG seam not kept when PG is not enabled in config")
	}
	if e := s.Close(ctx); e != nil {
		t.Fatalf("Close returned error: %v", e)
	}
}

// TestOpen_OptionError stops before any backend is opened
func TestOpen_OptionError(t *testing.T) {
	t.Parallel()

	bad := func(*Store) error { return errors.New("bad option") }
	if _, err := Open(context.Background(), Config{PG: PGConfig{Enabled: true, URL: "://bad"}}, bad); err == nil || err.Error() != "bad option" {
		t.Fatalf("expected option error first, got %v", err)
	}
}

func TestGuard_CH_PingError_Prefixed(t *testing.T) {
	t.Parallel()

	s := &Store{CH: newCHAdapter(&fakeCH{pingErr: errors.New("refused")})}
	err := s.Guard(context.Background())
	if err == nil || !strings.HasPrefix(err.Error(), "ch: ") {
		t.Fatalf("expected ch-prefixed error, got %v", err)
	}
}

func TestClose_ClosesCH(t *testing.T) {
	t.Parallel()

	f := &fakeCH{}
	s := &Store{CH: newCHAdapter(f)}
	if err := s.Close(context.Background()); err != nil || !f.closed {
		t.Fatalf("Close should close CH, err=%v closed=%v", err, f.closed)
	}
}
