package postgres

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/BakiChantier/chantier-direct-sub000/internal/repository/sqlstore"
)

// Dialect describes PostgreSQL to the shared store / Décrit PostgreSQL pour le store commun
// lib/pq has no LastInsertId, ids come back through RETURNING.
var Dialect = sqlstore.Dialect{
	Name:        "postgres",
	Placeholder: sq.Dollar,
	Returning:   true,
	HandleError: handleError,
}

// Factory implements DatabaseFactory for PostgreSQL / Implémente DatabaseFactory pour PostgreSQL
type Factory struct {
	sqlstore.Factory
}

// NewFactory returns the PostgreSQL factory / Retourne la factory PostgreSQL
func NewFactory() *Factory {
	return &Factory{Factory: sqlstore.Factory{Dialect: Dialect}}
}
