package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/repository"
)

// EvaluationService handles ratings between parties of a completed project / Gère les notes entre parties
type EvaluationService struct {
	Deps
}

// NewEvaluationService creates the evaluation service / Crée le service des évaluations
func NewEvaluationService(d Deps) *EvaluationService {
	return &EvaluationService{Deps: d}
}

// EvaluationInput is a rating to leave / Note à déposer
type EvaluationInput struct {
	ProjectID int64
	Rating    int
	Comment   string
}

// Create rates the other party of a completed project / Note l'autre partie d'un chantier terminé
// The owner rates the awarded subcontractor and the subcontractor rates the owner.
func (s *EvaluationService) Create(ctx context.Context, evaluator *domain.User, in EvaluationInput) (*domain.Evaluation, error) {
	in.Comment = strings.TrimSpace(in.Comment)
	problems := fieldErrors{}
	if in.ProjectID <= 0 {
		problems.add("projet_id", "is required")
	}
	if !domain.ValidRating(in.Rating) {
		problems.add("rating", "must be between 1 and 5")
	}
	if utf8.RuneCountInString(in.Comment) > 2000 {
		problems.add("comment", "must be at most 2000 characters")
	}
	if err := problems.err(); err != nil {
		return nil, err
	}

	p, err := s.Repos.Projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return nil, notFound(err, "project")
	}
	if p.Status != domain.ProjectCompleted || p.AwardedOfferID == nil {
		return nil, ErrInvalidTransition
	}
	offer, err := s.Repos.Offers.GetByID(ctx, *p.AwardedOfferID)
	if err != nil {
		return nil, internal("failed to load awarded offer", err, "projet_id", p.ID)
	}

	var evaluated int64
	switch evaluator.ID {
	case p.OwnerID:
		evaluated = offer.SubcontractorID
	case offer.SubcontractorID:
		evaluated = p.OwnerID
	default:
		return nil, ErrForbidden
	}

	e, err := s.Repos.Evaluations.Create(ctx, &domain.Evaluation{
		ProjectID:   p.ID,
		EvaluatorID: evaluator.ID,
		EvaluatedID: evaluated,
		Rating:      in.Rating,
		Comment:     in.Comment,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDup) {
			return nil, ErrAlreadyEvaluated
		}
		return nil, internal("failed to store evaluation", err, "projet_id", p.ID)
	}
	slog.Info("evaluation created", "projet_id", p.ID, "evaluator_id", evaluator.ID, "evaluated_id", evaluated, "rating", in.Rating)
	return e, nil
}

// ListForUser returns ratings received by a user / Retourne les notes reçues par un utilisateur
func (s *EvaluationService) ListForUser(ctx context.Context, userID int64) ([]*domain.Evaluation, domain.RatingSummary, error) {
	if _, err := s.Repos.Users.GetByID(ctx, userID); err != nil {
		return nil, domain.RatingSummary{}, notFound(err, "user")
	}
	evals, err := s.Repos.Evaluations.ListForUser(ctx, userID)
	if err != nil {
		return nil, domain.RatingSummary{}, internal("failed to list evaluations", err, "user_id", userID)
	}
	summary, err := s.Repos.Evaluations.Summary(ctx, userID)
	if err != nil {
		return nil, domain.RatingSummary{}, internal("failed to summarize evaluations", err, "user_id", userID)
	}
	return evals, summary, nil
}
