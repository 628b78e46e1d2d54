package sqlstore

import (
	"database/sql"

	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
)

// Factory builds every repository for one dialect / Construit tous les repositories d'un dialecte
// Driver packages embed it and supply their Dialect.
type Factory struct {
	Dialect Dialect
}

// NewUserRepository creates user repository / Crée le repository utilisateur
func (f *Factory) NewUserRepository(db *sql.DB) ports.UserRepository {
	return NewUserRepository(db, f.Dialect)
}

// NewRefreshTokenStore creates refresh token store / Crée le store de refresh tokens
func (f *Factory) NewRefreshTokenStore(db *sql.DB) ports.RefreshTokenStore {
	return NewRefreshTokenStore(db, f.Dialect)
}

// NewProjectRepository creates project repository / Crée le repository des chantiers
func (f *Factory) NewProjectRepository(db *sql.DB) ports.ProjectRepository {
	return NewProjectRepository(db, f.Dialect)
}

// NewProjectImageRepository creates image repository / Crée le repository des photos
func (f *Factory) NewProjectImageRepository(db *sql.DB) ports.ProjectImageRepository {
	return NewProjectImageRepository(db, f.Dialect)
}

// NewOfferRepository creates offer repository / Crée le repository des offres
func (f *Factory) NewOfferRepository(db *sql.DB) ports.OfferRepository {
	return NewOfferRepository(db, f.Dialect)
}

// NewMessageRepository creates message repository / Crée le repository des messages
func (f *Factory) NewMessageRepository(db *sql.DB) ports.MessageRepository {
	return NewMessageRepository(db, f.Dialect)
}

// NewDocumentRepository creates document repository / Crée le repository des justificatifs
func (f *Factory) NewDocumentRepository(db *sql.DB) ports.DocumentRepository {
	return NewDocumentRepository(db, f.Dialect)
}

// NewEvaluationRepository creates evaluation repository / Crée le repository des évaluations
func (f *Factory) NewEvaluationRepository(db *sql.DB) ports.EvaluationRepository {
	return NewEvaluationRepository(db, f.Dialect)
}

// NewReferenceRepository creates reference repository / Crée le repository des références
func (f *Factory) NewReferenceRepository(db *sql.DB) ports.ReferenceRepository {
	return NewReferenceRepository(db, f.Dialect)
}
