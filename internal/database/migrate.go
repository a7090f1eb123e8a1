package database

import (
	"embed"
	stderrors "errors"
	"strings"

	"github.com/Martin-Hayot/auctionhub/configs"
	"github.com/Martin-Hayot/auctionhub/pkg/errors"
	"github.com/charmbracelet/log"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationURL rewrites a postgres:// DSN to the scheme the pgx/v5 migrate driver registers.
func migrationURL(dsn string) string {
	return "pgx5://" + strings.TrimPrefix(dsn, "postgres://")
}

func newMigrate(dsn string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "error loading migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, migrationURL(dsn))
	if err != nil {
		return nil, errors.Wrap(err, "error creating migrate instance")
	}
	return m, nil
}

// MigrateUp applies all pending migrations. It is a no-op for the in-memory store.
func MigrateUp(cfg *configs.Config) error {
	if cfg.Database.Driver == "memory" {
		return nil
	}
	return MigrateDSN(DSN(cfg), true)
}

// MigrateDown reverts every migration.
func MigrateDown(cfg *configs.Config) error {
	if cfg.Database.Driver == "memory" {
		return nil
	}
	return MigrateDSN(DSN(cfg), false)
}

// MigrateDSN runs the embedded migrations against dsn in the given direction.
func MigrateDSN(dsn string, up bool) error {
	m, err := newMigrate(dsn)
	if err != nil {
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn("Error closing migrate instance", "source", srcErr, "database", dbErr)
		}
	}()

	if up {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if stderrors.Is(err, migrate.ErrNoChange) {
		log.Debug("Schema already up to date")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "error running migrations")
	}

	version, dirty, _ := m.Version()
	log.Info("Migrations applied", "version", version, "dirty", dirty, "up", up)
	return nil
}
