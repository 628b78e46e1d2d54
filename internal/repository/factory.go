package repository

import (
	"database/sql"

	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
)

// DatabaseFactory must be implemented by each database package / Doit être implémenté par chaque package de BD
// Adding a repository here forces every driver package (sqlite, mysql, postgres) to provide it.
// Ajouter un repository ici oblige chaque package de BD à le fournir.
type DatabaseFactory interface {
	NewUserRepository(db *sql.DB) ports.UserRepository
	NewRefreshTokenStore(db *sql.DB) ports.RefreshTokenStore
	NewProjectRepository(db *sql.DB) ports.ProjectRepository
	NewProjectImageRepository(db *sql.DB) ports.ProjectImageRepository
	NewOfferRepository(db *sql.DB) ports.OfferRepository
	NewMessageRepository(db *sql.DB) ports.MessageRepository
	NewDocumentRepository(db *sql.DB) ports.DocumentRepository
	NewEvaluationRepository(db *sql.DB) ports.EvaluationRepository
	NewReferenceRepository(db *sql.DB) ports.ReferenceRepository
}
