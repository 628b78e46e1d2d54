package db

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/BakiChantier/chantier-direct-sub000/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// override for local schema work
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// MigrateDirection selects up or down / Sens de migration
type MigrateDirection string

const (
	MigrateUp   MigrateDirection = "up"
	MigrateDown MigrateDirection = "down"
)

// NewMigrator builds a migrate instance for database / Construit l'instance de migration
// An empty path uses the schema embedded in the binary.
func NewMigrator(database *sql.DB, dbType DatabaseType, path string) (*migrate.Migrate, error) {
	dialect, err := dialectFor(dbType)
	if err != nil {
		return nil, err
	}

	driver, err := dialect.open(database)
	if err != nil {
		return nil, fmt.Errorf("could not create %s migration driver: %w", dbType, err)
	}

	if path != "" {
		m, err := migrate.NewWithDatabaseInstance("file://"+path, dialect.name, driver)
		if err != nil {
			return nil, fmt.Errorf("could not create migrate instance: %w", err)
		}
		return m, nil
	}

	src, err := embeddedSource(dbType)
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithInstance("iofs", src, dialect.name, driver)
	if err != nil {
		return nil, fmt.Errorf("could not create migrate instance: %w", err)
	}
	return m, nil
}

func embeddedSource(dbType DatabaseType) (source.Driver, error) {
	sub, err := fs.Sub(migrations.FS, dbType.String())
	if err != nil {
		return nil, fmt.Errorf("no embedded migrations for %s: %w", dbType, err)
	}
	return iofs.New(sub, ".")
}

// Migrate applies migrations in the given direction / Applique les migrations
func Migrate(database *sql.DB, dbType DatabaseType, path string, dir MigrateDirection) error {
	m, err := NewMigrator(database, dbType, path)
	if err != nil {
		return err
	}

	slog.Info("applying database migrations", "db", dbType, "direction", dir)
	switch dir {
	case MigrateDown:
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, verr := m.Version()
	if verr == nil {
		slog.Info("database schema ready", "version", version, "dirty", dirty)
	}
	return nil
}
