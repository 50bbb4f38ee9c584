package pg

import (
	"context"
	"strings"

	"hntrends/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent describes one statement executed through the store adapters
type QueryEvent struct {
	SQL       string
	Args      any
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer receives an event per executed statement
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// maxArgsLogged caps how many bind args are logged per statement (bulk inserts carry thousands)
const maxArgsLogged = 16

// Tracer returns a logger that ALWAYS prints SQL when LogSQL=true,
// independent of the process-wide root level
func Tracer(root logger.Logger) QueryTracer {
	ll := root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()
	return &zlTracer{log: ll}
}

type zlTracer struct{ log logger.Logger }

func (z *zlTracer) OnQuery(ctx context.Context, ev QueryEvent) {
	elapsedMs := float64(ev.ElapsedUS) / 1000.0
	evt := z.log.Info()
	if ev.Slow {
		evt = z.log.Warn()
	}
	if id := logger.RunID(ctx); id != "" {
		evt = evt.Str("run_id", id)
	}

	evt.Float64("elapsed_ms", elapsedMs).
		Bool("slow", ev.Slow).
		Str("sql", compact(ev.SQL)).
		Interface("args", truncArgs(ev.Args)).
		Err(ev.Err).
		Msg("pg query")
}

func truncArgs(a any) any {
	args, ok := a.([]any)
	if !ok || len(args) <= maxArgsLogged {
		return a
	}
	out := make([]any, 0, maxArgsLogged+1)
	out = append(out, args[:maxArgsLogged]...)
	return append(out, "...")
}

// compact folds runs of whitespace into single spaces
func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
