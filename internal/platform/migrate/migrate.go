// Package migrate applies the embedded schema migrations to Postgres
package migrate

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"hntrends/internal/platform/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var FS embed.FS

// Status is the schema version after a migration call
type Status struct {
	Version uint
	Dirty   bool
	Changed bool
}

// Up applies every pending migration
// Cancelling ctx asks the migrator to stop after the current step
func Up(ctx context.Context, dbURL string) (Status, error) {
	m, err := open(dbURL)
	if err != nil {
		return Status{}, err
	}
	defer closeQuiet(m)

	stop := watch(ctx, m)
	defer stop()

	changed := true
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return Status{}, fmt.Errorf("migration failed: %w", err)
		}
		changed = false
	}
	st, err := version(m)
	st.Changed = changed
	return st, err
}

// Version reports the current schema version without changing anything
func Version(dbURL string) (Status, error) {
	m, err := open(dbURL)
	if err != nil {
		return Status{}, err
	}
	defer closeQuiet(m)
	return version(m)
}

func open(dbURL string) (*migrate.Migrate, error) {
	if strings.TrimSpace(dbURL) == "" {
		return nil, errors.New("migrate: empty database url")
	}
	src, err := iofs.New(FS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	m.Log = migrateLog{log: logger.Named("migrate")}
	return m, nil
}

func version(m *migrate.Migrate) (Status, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("read schema version: %w", err)
	}
	return Status{Version: v, Dirty: dirty}, nil
}

func watch(ctx context.Context, m *migrate.Migrate) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			select {
			case m.GracefulStop <- true:
			default:
			}
		case <-done:
		}
	}()
	return func() { close(done) }
}

func closeQuiet(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		logger.Named("migrate").Warn().Err(err).Msg("close migrator")
	}
}

// migrateLog routes migrate's printf logging into zerolog
type migrateLog struct {
	log *zerolog.Logger
}

func (l migrateLog) Printf(format string, v ...any) {
	l.log.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLog) Verbose() bool {
	return l.log.GetLevel() <= zerolog.DebugLevel
}
