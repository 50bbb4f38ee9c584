package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hntrends/internal/core/version"
	"hntrends/internal/modkit"
	"hntrends/internal/modkit/module"
	"hntrends/internal/platform/config"
	perr "hntrends/internal/platform/errors"
	"hntrends/internal/platform/logger"
	"hntrends/internal/platform/metrics"
	"hntrends/internal/platform/store"

	rollupmod "hntrends/internal/services/rollup/module"
)

const service = "hntrends-rollup"

func main() { os.Exit(run()) }

func run() int {
	if err := config.LoadDotenv(); err != nil {
		logger.Get().Warn().Err(err).Msg(".env ignored")
	}
	root := config.New()
	l := logger.Named(service)
	l.Info().Str("version", version.Version()).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.ConfigFromEnv(service, true), store.WithLogger(*l))
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
	deps := modkit.FromStore(st, root, m)
	deps.Log = *l

	rm := rollupmod.Register(deps)
	sum, err := module.MustPortsOf[rollupmod.Ports](rm).Exporter.Export(ctx)

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if pushErr := m.Push(pctx, metrics.PushConfigFromEnv(service)); pushErr != nil {
		l.Warn().Err(pushErr).Msg("metrics push failed")
	}

	if err != nil {
		l.Error().Err(err).Msg("rollup export failed")
		return perr.ExitStatus(err)
	}
	l.Info().Interface("rows", sum.Rows).Msg("rollup export finished")
	return 0
}
