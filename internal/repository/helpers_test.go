package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
)

func setupTestDB(t *testing.T) (*sql.DB, Repositories) {
	t.Helper()
	database, err := OpenSQLiteMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database, NewSQLiteRepositories(database)
}

func createUser(t *testing.T, repos Repositories, role domain.UserRole) *domain.User {
	t.Helper()
	profile := domain.Profile{
		CompanyName: gofakeit.Company(),
		City:        gofakeit.City(),
		Phone:       gofakeit.Phone(),
	}
	u, err := repos.Users.Create(context.Background(), gofakeit.Email(), "hashed", role, profile)
	if err != nil {
		t.Fatalf("Failed to create %s user: %v", role, err)
	}
	return u
}

func createProject(t *testing.T, repos Repositories, ownerID int64, moderation domain.ModerationStatus) *domain.Projet {
	t.Helper()
	p, err := repos.Projects.Create(context.Background(), &domain.Projet{
		OwnerID:     ownerID,
		Title:       "Rénovation " + gofakeit.Noun(),
		Description: gofakeit.Sentence(12),
		Trade:       "maconnerie",
		City:        "Lyon",
		PostalCode:  "69003",
		Moderation:  moderation,
		Status:      domain.ProjectOpen,
	})
	if err != nil {
		t.Fatalf("Failed to create project: %v", err)
	}
	return p
}
