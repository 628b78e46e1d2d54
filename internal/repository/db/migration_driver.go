package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
)

const (
	// MigrationsTable records the applied schema version / Table de version du schéma
	MigrationsTable = "chantier_schema_migrations"
	// migrationStatementTimeout bounds one migration statement on server databases
	migrationStatementTimeout = 2 * time.Minute
)

// migrationDialect binds a database type to its golang-migrate driver
// Associe un type de base à son driver de migration
type migrationDialect struct {
	// name is the driver name reported to golang-migrate
	name string
	open func(*sql.DB) (database.Driver, error)
}

var migrationDialects = map[DatabaseType]migrationDialect{
	SQLite: {
		name: "sqlite3",
		open: func(db *sql.DB) (database.Driver, error) {
			return sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: MigrationsTable})
		},
	},
	MySQL: {
		name: "mysql",
		open: func(db *sql.DB) (database.Driver, error) {
			return mysql.WithInstance(db, &mysql.Config{
				MigrationsTable:  MigrationsTable,
				StatementTimeout: migrationStatementTimeout,
			})
		},
	},
	PostgreSQL: {
		name: "postgres",
		open: func(db *sql.DB) (database.Driver, error) {
			return postgres.WithInstance(db, &postgres.Config{
				MigrationsTable:  MigrationsTable,
				StatementTimeout: migrationStatementTimeout,
			})
		},
	},
}

// dialectFor returns the migration dialect of dbType / Retourne le dialecte de migration
func dialectFor(dbType DatabaseType) (migrationDialect, error) {
	d, ok := migrationDialects[dbType]
	if !ok {
		return migrationDialect{}, fmt.Errorf("unsupported database type for migrations: %s", dbType)
	}
	return d, nil
}
