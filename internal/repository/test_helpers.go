package repository

import (
	"database/sql"
	"fmt"

	"github.com/BakiChantier/chantier-direct-sub000/internal/repository/db"
	"github.com/BakiChantier/chantier-direct-sub000/internal/repository/sqlite"
	_ "modernc.org/sqlite" // SQLite driver
)

// OpenSQLiteMemory opens a migrated in-memory SQLite database / Ouvre une base SQLite en mémoire migrée
// The pool is pinned to one connection so every query sees the same memory database.
func OpenSQLiteMemory() (*sql.DB, error) {
	database, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	database.SetMaxOpenConns(1)

	if _, err := database.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		database.Close()
		return nil, err
	}
	if err := db.Migrate(database, db.SQLite, "", db.MigrateUp); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate test database: %w", err)
	}
	return database, nil
}

// NewSQLiteRepositories builds SQLite repositories for tests / Construit les repositories SQLite pour les tests
func NewSQLiteRepositories(database *sql.DB) Repositories {
	return (&Adapter{db: database, factory: sqlite.NewFactory()}).Repositories()
}
