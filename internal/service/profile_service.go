package service

import (
	"context"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
)

// ProfileService assembles member profiles / Assemble les profils des membres
type ProfileService struct {
	Deps
	documents  *DocumentService
	references *ReferenceService
}

// NewProfileService creates the profile service / Crée le service des profils
func NewProfileService(d Deps, docs *DocumentService, refs *ReferenceService) *ProfileService {
	return &ProfileService{Deps: d, documents: docs, references: refs}
}

// Me is the private view of the current user / Vue privée de l'utilisateur courant
type Me struct {
	User         *domain.User
	Verification Verification
}

// PublicProfile is the company card shown to other members / Fiche entreprise visible des autres membres
type PublicProfile struct {
	User         *domain.User
	Rating       domain.RatingSummary
	References   []*domain.Reference
	Verification Verification
}

// Me returns the current user with its verification state / Retourne l'utilisateur et sa vérification
func (s *ProfileService) Me(ctx context.Context, userID int64) (*Me, error) {
	user, err := s.Repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	v, err := s.documents.VerificationOf(ctx, user)
	if err != nil {
		return nil, err
	}
	return &Me{User: user, Verification: v}, nil
}

// Public returns the card of a member / Retourne la fiche d'un membre
// Staff accounts are not listed publicly.
func (s *ProfileService) Public(ctx context.Context, userID int64) (*PublicProfile, error) {
	user, err := s.Repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	if user.IsStaff() {
		return nil, ErrNotFound
	}

	out := &PublicProfile{User: user, References: []*domain.Reference{}}
	if out.Verification, err = s.documents.VerificationOf(ctx, user); err != nil {
		return nil, err
	}
	if out.Rating, err = s.Repos.Evaluations.Summary(ctx, userID); err != nil {
		return nil, internal("failed to summarize evaluations", err, "user_id", userID)
	}
	if user.HasRole(domain.RoleSousTraitant) {
		if out.References, err = s.references.ListByUser(ctx, userID); err != nil {
			return nil, err
		}
	}
	return out, nil
}
