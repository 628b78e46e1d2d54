package sqlite

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/BakiChantier/chantier-direct-sub000/internal/repository/sqlstore"
)

// Dialect describes SQLite to the shared store / Décrit SQLite pour le store commun
var Dialect = sqlstore.Dialect{
	Name:        "sqlite",
	Placeholder: sq.Question,
	HandleError: handleError,
}

// Factory implements DatabaseFactory for SQLite / Implémente DatabaseFactory pour SQLite
// The compile-time check is in adapter.go to avoid import cycles
// La vérification à la compilation est dans adapter.go pour éviter les cycles d'imports
type Factory struct {
	sqlstore.Factory
}

// NewFactory returns the SQLite factory / Retourne la factory SQLite
func NewFactory() *Factory {
	return &Factory{Factory: sqlstore.Factory{Dialect: Dialect}}
}
