package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite" // SQLite driver
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	database, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close() })
	return database
}

func tableExists(t *testing.T, database *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := database.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestMigrateUpAndDown(t *testing.T) {
	database := openMemory(t)

	require.NoError(t, Migrate(database, SQLite, "", MigrateUp))
	for _, table := range []string{MigrationsTable, "users", "projets", "offres", "documents", "company_references"} {
		assert.True(t, tableExists(t, database, table), table)
	}

	// Applying twice is a no-op / Réappliquer ne change rien
	require.NoError(t, Migrate(database, SQLite, "", MigrateUp))

	m, err := NewMigrator(database, SQLite, "")
	require.NoError(t, err)
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, Migrate(database, SQLite, "", MigrateDown))
	assert.False(t, tableExists(t, database, "projets"))
}

func TestMigrateUnknownDatabase(t *testing.T) {
	database := openMemory(t)
	err := Migrate(database, DatabaseType("oracle"), "", MigrateUp)
	assert.Error(t, err)
}

func TestEveryDatabaseTypeHasMigrations(t *testing.T) {
	for _, dbType := range []DatabaseType{SQLite, MySQL, PostgreSQL} {
		d, err := dialectFor(dbType)
		require.NoError(t, err, dbType)
		assert.NotEmpty(t, d.name)

		src, err := embeddedSource(dbType)
		require.NoError(t, err, dbType)
		first, err := src.First()
		assert.NoError(t, err, dbType)
		assert.Equal(t, uint(1), first)
		src.Close()
	}

	_, err := dialectFor(ParseDatabaseType("oracle"))
	assert.ErrorContains(t, err, "oracle")
}
