package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/events"
)

// ModerationService reviews posted projects / Modère les chantiers publiés
type ModerationService struct {
	Deps
}

// NewModerationService creates the moderation service / Crée le service de modération
func NewModerationService(d Deps) *ModerationService {
	return &ModerationService{Deps: d}
}

// ListProjects returns projects by moderation status / Liste les chantiers par statut de modération
func (s *ModerationService) ListProjects(ctx context.Context, status domain.ModerationStatus, page domain.Page) ([]*domain.Projet, int, error) {
	if status == "" {
		status = domain.ModerationPending
	}
	if !status.IsValid() {
		return nil, 0, invalid("status", "must be PENDING, VALIDATED or REJECTED")
	}
	projets, total, err := s.Repos.Projects.List(ctx, domain.ProjectFilter{Moderation: status}, NormalizePage(page))
	if err != nil {
		return nil, 0, internal("failed to list projects for moderation", err, "status", status)
	}
	return projets, total, nil
}

// Validate publishes a project / Valide un chantier
func (s *ModerationService) Validate(ctx context.Context, moderatorID, projectID int64) (*domain.Projet, error) {
	return s.decide(ctx, moderatorID, projectID, domain.ModerationValidated, "")
}

// Reject refuses a project with a reason / Refuse un chantier avec un motif
func (s *ModerationService) Reject(ctx context.Context, moderatorID, projectID int64, reason string) (*domain.Projet, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("reason", "is required")
	}
	return s.decide(ctx, moderatorID, projectID, domain.ModerationRejected, reason)
}

func (s *ModerationService) decide(ctx context.Context, moderatorID, projectID int64, decision domain.ModerationStatus, reason string) (*domain.Projet, error) {
	p, err := s.Repos.Projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, notFound(err, "project")
	}
	if !p.Moderation.CanTransition(decision) {
		return nil, ErrInvalidTransition
	}
	if err := stale(s.Repos.Projects.SetModeration(ctx, projectID, p.Moderation, decision, reason)); err != nil {
		return nil, txFailure("failed to store moderation decision", err, "projet_id", projectID)
	}

	s.Metrics.RecordModeration(string(decision))
	s.publish(ctx, events.ProjectModerated, map[string]any{
		"projet_id": projectID, "status": decision, "reason": reason, "moderator_id": moderatorID,
	})
	s.notify(ctx, MailProjectModerated, p.OwnerID, MailData{
		"Title":     p.Title,
		"Validated": decision == domain.ModerationValidated,
		"Reason":    reason,
		"URL":       s.link("donneur-ordre/projets"),
	})
	slog.Info("project moderated", "projet_id", projectID, "status", decision, "moderator_id", moderatorID)
	return s.Repos.Projects.GetByID(ctx, projectID)
}

// Stats returns the dashboard counters / Retourne les compteurs du tableau de bord
func (s *ModerationService) Stats(ctx context.Context) (*domain.Stats, error) {
	users, err := s.Repos.Users.CountByRole(ctx)
	if err != nil {
		return nil, internal("failed to count users", err)
	}
	projets, err := s.Repos.Projects.CountByModeration(ctx)
	if err != nil {
		return nil, internal("failed to count projects", err)
	}
	offers, err := s.Repos.Offers.CountByStatus(ctx)
	if err != nil {
		return nil, internal("failed to count offers", err)
	}
	pending, err := s.Repos.Documents.CountByStatus(ctx, domain.DocumentPending)
	if err != nil {
		return nil, internal("failed to count documents", err)
	}
	return &domain.Stats{
		UsersByRole:          users,
		ProjectsByModeration: projets,
		OffersByStatus:       offers,
		DocumentsPending:     pending,
	}, nil
}
