package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"hntrends/internal/core/version"
	"hntrends/internal/modkit"
	"hntrends/internal/modkit/module"
	"hntrends/internal/platform/config"
	perr "hntrends/internal/platform/errors"
	"hntrends/internal/platform/logger"
	"hntrends/internal/platform/migrate"
	"hntrends/internal/platform/store"

	kwmod "hntrends/internal/services/keywords/module"
	kwservice "hntrends/internal/services/keywords/service"
	tagmod "hntrends/internal/services/tagging/module"
	tagrepo "hntrends/internal/services/tagging/repo"
)

const service = "hntrends-admin"

func main() { os.Exit(run()) }

func run() int {
	if err := config.LoadDotenv(); err != nil {
		logger.Get().Warn().Err(err).Msg(".env ignored")
	}

	var (
		fMigrate = flag.Bool("migrate", false, "apply embedded migrations")
		fStatus  = flag.Bool("status", false, "print schema version and the last tagging run")
		fSeed    = flag.Bool("seed-keywords", false, "upsert keywords from the seed file")
		fFile    = flag.String("file", "", "seed file (default CORE_KEYWORDS_SEED_FILE)")
		fVersion = flag.Bool("version", false, "print build info and exit")
	)
	flag.Parse()

	if *fVersion {
		info := version.Info(service)
		fmt.Printf("%s %s (%s, %s)\n", info.Service, info.Version, info.Commit, info.Date)
		return 0
	}
	if !*fMigrate && !*fStatus && !*fSeed {
		flag.Usage()
		return 2
	}

	root := config.New()
	l := logger.Named(service)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	stCfg := store.ConfigFromEnv(service, false)

	if *fMigrate {
		ms, err := migrate.Up(ctx, stCfg.PG.URL)
		if err != nil {
			l.Error().Err(err).Msg("migrations failed")
			return perr.ExitCode(perr.ErrorCodeDB)
		}
		l.Info().Uint("version", ms.Version).Bool("changed", ms.Changed).Msg("migrations applied")
	}
	if !*fStatus && !*fSeed {
		return 0
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
	deps := modkit.FromStore(st, root, nil)
	deps.Log = *l

	if *fSeed {
		kw := kwmod.Register(deps)
		path := *fFile
		if path == "" {
			path = kw.Options().SeedFile
		}
		list, err := kwservice.LoadSeedFile(path)
		if err != nil {
			l.Error().Err(err).Str("file", path).Msg("seed file rejected")
			return perr.ExitStatus(err)
		}
		n, err := module.MustPortsOf[kwmod.Ports](kw).Seeder.Seed(ctx, list)
		if err != nil {
			l.Error().Err(err).Msg("seed failed")
			return perr.ExitStatus(err)
		}
		l.Info().Int("keywords", n).Str("file", path).Msg("keywords seeded")
	}

	if *fStatus {
		ms, err := migrate.Version(stCfg.PG.URL)
		if err != nil {
			l.Error().Err(err).Msg("schema version unavailable")
			return perr.ExitCode(perr.ErrorCodeDB)
		}
		fmt.Printf("schema version %d (dirty=%v)\n", ms.Version, ms.Dirty)

		rec, err := tagrepo.NewLedger().Bind(deps.PG).Last(ctx)
		switch {
		case perr.IsCode(err, perr.ErrorCodeNotFound):
			fmt.Println("no tagging runs recorded")
		case err != nil:
			l.Error().Err(err).Msg("run ledger unavailable")
			return perr.ExitStatus(err)
		default:
			fmt.Printf("last run %s: %s started %s, %d keywords, %d story facts, %d hiring facts\n",
				rec.RunID, rec.Status, rec.StartedAt.Format(time.RFC3339), rec.Keywords, rec.StoryFacts, rec.HiringFacts)
			if rec.ErrText != "" {
				fmt.Printf("  error: %s\n", rec.ErrText)
			}
		}
		o := tagmod.FromConfig(root, "CORE_TAGGING_")
		fmt.Printf("tagging: workers=%d dry_run=%v leases=%v stories=%s hiring=%s\n",
			o.Workers, o.DryRun, o.EnableLeases, o.StoriesTable, o.HiringTable)
	}
	return 0
}
