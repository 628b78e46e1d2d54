package mysql

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/BakiChantier/chantier-direct-sub000/internal/repository/sqlstore"
)

// Dialect describes MySQL to the shared store / Décrit MySQL pour le store commun
var Dialect = sqlstore.Dialect{
	Name:        "mysql",
	Placeholder: sq.Question,
	HandleError: handleError,
}

// Factory implements DatabaseFactory for MySQL / Implémente DatabaseFactory pour MySQL
type Factory struct {
	sqlstore.Factory
}

// NewFactory returns the MySQL factory / Retourne la factory MySQL
func NewFactory() *Factory {
	return &Factory{Factory: sqlstore.Factory{Dialect: Dialect}}
}
