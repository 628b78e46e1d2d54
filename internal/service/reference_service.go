package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/storage"
)

// ReferenceService manages subcontractor past jobs / Gère les réalisations des sous-traitants
type ReferenceService struct {
	Deps
}

// NewReferenceService creates the reference service / Crée le service des références
func NewReferenceService(d Deps) *ReferenceService {
	return &ReferenceService{Deps: d}
}

// ReferenceInput describes a past job, Image is optional / Réalisation, l'image est facultative
type ReferenceInput struct {
	Title       string
	Description string
	Year        int
	City        string
	Image       io.Reader
}

// Create adds a reference to the subcontractor profile / Ajoute une réalisation au profil
func (s *ReferenceService) Create(ctx context.Context, owner *domain.User, in ReferenceInput) (*domain.Reference, error) {
	if !owner.HasRole(domain.RoleSousTraitant) {
		return nil, ErrForbidden
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.City = strings.TrimSpace(in.City)
	problems := fieldErrors{}
	switch n := utf8.RuneCountInString(in.Title); {
	case n == 0:
		problems.add("titre", "is required")
	case n > 200:
		problems.add("titre", "must be at most 200 characters")
	}
	if utf8.RuneCountInString(in.Description) > 2000 {
		problems.add("description", "must be at most 2000 characters")
	}
	if in.Year != 0 && (in.Year < 1950 || in.Year > s.now().Year()+1) {
		problems.add("annee", "is out of range")
	}
	if err := problems.err(); err != nil {
		return nil, err
	}

	ref := &domain.Reference{
		UserID:      owner.ID,
		Title:       in.Title,
		Description: in.Description,
		Year:        in.Year,
		City:        in.City,
	}
	var obj *storage.Object
	if in.Image != nil {
		var err error
		obj, err = storage.Put(ctx, s.Storage, uploadKey("references", owner.ID), in.Image,
			storageLimit(s.Config.Storage.MaxImageBytes, 5<<20), storage.ImageTypes)
		if err != nil {
			return nil, err
		}
		ref.ImageKey = obj.Key
		ref.ImageURL = obj.URL
	}

	created, err := s.Repos.References.Create(ctx, ref)
	if err != nil {
		s.discard(ctx, obj)
		return nil, internal("failed to store reference", err, "user_id", owner.ID)
	}
	slog.Info("reference created", "reference_id", created.ID, "user_id", owner.ID)
	return created, nil
}

// ListByUser returns the references of a user / Retourne les réalisations d'un utilisateur
func (s *ReferenceService) ListByUser(ctx context.Context, userID int64) ([]*domain.Reference, error) {
	refs, err := s.Repos.References.ListByUser(ctx, userID)
	if err != nil {
		return nil, internal("failed to list references", err, "user_id", userID)
	}
	for _, r := range refs {
		if r.ImageKey != "" {
			r.ImageURL = s.Storage.URL(r.ImageKey)
		}
	}
	return refs, nil
}

// Delete removes an own reference and its image / Supprime une réalisation et son image
func (s *ReferenceService) Delete(ctx context.Context, owner *domain.User, id int64) error {
	ref, err := s.Repos.References.GetByID(ctx, id)
	if err != nil {
		return notFound(err, "reference")
	}
	if ref.UserID != owner.ID {
		return ErrForbidden
	}
	if err := s.Repos.References.Delete(ctx, id); err != nil {
		return internal("failed to delete reference", err, "reference_id", id)
	}
	if ref.ImageKey != "" {
		if err := s.Storage.Delete(ctx, ref.ImageKey); err != nil {
			slog.Warn("failed to delete reference image", "key", ref.ImageKey, "err", err)
		}
	}
	return nil
}
