package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"hntrends/internal/core/version"
	"hntrends/internal/modkit"
	"hntrends/internal/modkit/module"
	"hntrends/internal/platform/config"
	perr "hntrends/internal/platform/errors"
	"hntrends/internal/platform/logger"
	"hntrends/internal/platform/metrics"
	"hntrends/internal/platform/migrate"
	"hntrends/internal/platform/store"

	kwmod "hntrends/internal/services/keywords/module"
	rollupmod "hntrends/internal/services/rollup/module"
	tagmod "hntrends/internal/services/tagging/module"
)

const service = "hntrends-refresh"

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() { os.Exit(run()) }

// run returns the process exit status; every pipeline failure is non-zero
func run() int {
	if err := config.LoadDotenv(); err != nil {
		logger.Get().Warn().Err(err).Msg(".env ignored")
	}

	var (
		fDryRun  = flag.Bool("dry-run", false, "compute facts but leave the fact tables untouched")
		fWorkers = flag.Int("workers", 0, "concurrent match queries (0 keeps CORE_TAGGING_WORKERS)")
		fExport  = flag.Bool("export-rollups", false, "export monthly rollups to ClickHouse after a successful sync")
		fMigrate = flag.Bool("migrate", false, "apply embedded migrations before running (same as MIGRATE_ON_START=1)")
		fTimeout = flag.Duration("timeout", 0, "overall run budget (0 = none)")
	)
	flag.Parse()

	if *fDryRun {
		mustSetEnv("CORE_TAGGING_DRY_RUN", "1")
	}
	if *fWorkers > 0 {
		mustSetEnv("CORE_TAGGING_WORKERS", strconv.Itoa(*fWorkers))
	}
	if *fExport {
		mustSetEnv("CORE_TAGGING_EXPORT_ROLLUPS", "1")
	}

	root := config.New()
	l := logger.Named(service)
	info := version.Info(service)
	l.Info().Str("version", info.Version).Str("commit", info.Commit).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *fTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *fTimeout)
		defer cancel()
	}

	tagOpts := tagmod.FromConfig(root, "CORE_TAGGING_")
	exportRollups := tagOpts.ExportRollups && !tagOpts.DryRun
	stCfg := store.ConfigFromEnv(service, exportRollups)

	if *fMigrate || root.MayBool("MIGRATE_ON_START", false) {
		ms, err := migrate.Up(ctx, stCfg.PG.URL)
		if err != nil {
			l.Error().Err(err).Msg("migrations failed")
			return perr.ExitCode(perr.ErrorCodeDB)
		}
		l.Info().Uint("version", ms.Version).Bool("changed", ms.Changed).Msg("migrations applied")
	}

	st, err := store.Open(ctx, stCfg, store.WithLogger(*l))
	if err != nil {
		l.Error().Err(err).Msg("store.Open failed")
		return perr.ExitCode(perr.ErrorCodeUnavailable)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	if err := st.Guard(ctx); err != nil {
		l.Error().Err(err).Msg("store guard failed")
		return perr.ExitCode(perr.ErrorCodeUnavailable)
	}

	m := metrics.New()
	defer pushMetrics(ctx, l, m)

	deps := modkit.FromStore(st, root, m)
	deps.Log = *l

	kwmod.Register(deps)
	tg := tagmod.Register(deps)
	runner := module.MustPortsOf[tagmod.Ports](tg).Runner

	rep, err := runner.Run(ctx)
	if err != nil {
		return perr.ExitStatus(err)
	}
	l.Info().
		Str("run_id", rep.RunID.String()).
		Str("status", string(rep.Status)).
		Int("story_facts", rep.StoryFacts).
		Int("hiring_facts", rep.HiringFacts).
		Msg("refresh finished")

	if exportRollups {
		rm := rollupmod.Register(deps)
		if _, err := module.MustPortsOf[rollupmod.Ports](rm).Exporter.Export(ctx); err != nil {
			l.Error().Err(err).Msg("rollup export failed")
			return perr.ExitStatus(err)
		}
	}
	return 0
}

// pushMetrics sends the run's metrics even when ctx is already cancelled
func pushMetrics(ctx context.Context, l *logger.Logger, m *metrics.Metrics) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := m.Push(pctx, metrics.PushConfigFromEnv(service)); err != nil {
		l.Warn().Err(err).Msg("metrics push failed")
	}
}
