package storage

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	logx "kursbot/pkg/logx"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// migrate applies pending migrations for the current driver. The migrate
// instance is not closed: closing it would close the shared *sql.DB.
func (d *DB) migrate() error {
	src, err := iofs.New(migrationsFS, "migrations/"+d.driver)
	if err != nil {
		return fmt.Errorf("storage: migrations source: %w", err)
	}

	var drv database.Driver
	switch d.driver {
	case DriverPostgres:
		drv, err = postgres.WithInstance(d.db, &postgres.Config{})
	case DriverSQLite:
		drv, err = sqlite.WithInstance(d.db, &sqlite.Config{})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, d.driver)
	}
	if err != nil {
		return fmt.Errorf("storage: migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, d.driver, drv)
	if err != nil {
		return fmt.Errorf("storage: migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("storage: applying migrations: %w", err)
	}
	v, dirty, err := m.Version()
	if err == nil {
		d.log.Debug("migrations applied", logx.Int("version", int(v)), logx.Bool("dirty", dirty))
	}
	return nil
}
