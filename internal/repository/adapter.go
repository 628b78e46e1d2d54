package repository

import (
	"database/sql"

	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
	"github.com/BakiChantier/chantier-direct-sub000/internal/repository/db"
	"github.com/BakiChantier/chantier-direct-sub000/internal/repository/mysql"
	"github.com/BakiChantier/chantier-direct-sub000/internal/repository/postgres"
	"github.com/BakiChantier/chantier-direct-sub000/internal/repository/sqlite"
)

// Compile-time checks / Vérifications à la compilation
var (
	_ DatabaseFactory = (*sqlite.Factory)(nil)
	_ DatabaseFactory = (*mysql.Factory)(nil)
	_ DatabaseFactory = (*postgres.Factory)(nil)
)

// factoryRegistry holds all database factories / Registre de toutes les factories de BD
var factoryRegistry = map[db.DatabaseType]DatabaseFactory{
	db.SQLite:     sqlite.NewFactory(),
	db.MySQL:      mysql.NewFactory(),
	db.PostgreSQL: postgres.NewFactory(),
}

// Repositories groups every repository of the application / Regroupe tous les repositories
type Repositories struct {
	Users         ports.UserRepository
	RefreshTokens ports.RefreshTokenStore
	Projects      ports.ProjectRepository
	Images        ports.ProjectImageRepository
	Offers        ports.OfferRepository
	Messages      ports.MessageRepository
	Documents     ports.DocumentRepository
	Evaluations   ports.EvaluationRepository
	References    ports.ReferenceRepository
}

// Adapter adapts database connection to repositories / Adapte la connexion BD vers les repositories
type Adapter struct {
	db      *sql.DB
	factory DatabaseFactory
}

// NewAdapter creates repository adapter / Crée l'adapteur de repositories
func NewAdapter(database *sql.DB, driver string) *Adapter {
	factory := factoryRegistry[db.ParseDatabaseType(driver)]
	if factory == nil {
		factory = sqlite.NewFactory() // default fallback
	}
	return &Adapter{db: database, factory: factory}
}

// Repositories builds every repository / Construit tous les repositories
func (a *Adapter) Repositories() Repositories {
	return Repositories{
		Users:         a.factory.NewUserRepository(a.db),
		RefreshTokens: a.factory.NewRefreshTokenStore(a.db),
		Projects:      a.factory.NewProjectRepository(a.db),
		Images:        a.factory.NewProjectImageRepository(a.db),
		Offers:        a.factory.NewOfferRepository(a.db),
		Messages:      a.factory.NewMessageRepository(a.db),
		Documents:     a.factory.NewDocumentRepository(a.db),
		Evaluations:   a.factory.NewEvaluationRepository(a.db),
		References:    a.factory.NewReferenceRepository(a.db),
	}
}
