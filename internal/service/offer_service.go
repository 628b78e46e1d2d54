package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/events"
	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
	"github.com/BakiChantier/chantier-direct-sub000/internal/repository"
)

// OfferService manages bids / Gère les offres
type OfferService struct {
	Deps
	documents *DocumentService
}

// NewOfferService creates the offer service / Crée le service des offres
func NewOfferService(d Deps, documents *DocumentService) *OfferService {
	return &OfferService{Deps: d, documents: documents}
}

// OfferInput is a new bid / Nouvelle offre
type OfferInput struct {
	ProjectID int64
	Amount    int64 // Cents / Centimes
	DelayDays int
	Message   string
}

// OfferView is an offer seen by the project owner / Offre vue par le donneur d'ordre
type OfferView struct {
	*domain.Offre
	Rating       domain.RatingSummary
	Verification domain.VerificationStatus
}

// Submit places a bid on an open project / Dépose une offre sur un chantier ouvert
func (s *OfferService) Submit(ctx context.Context, bidder *domain.User, in OfferInput) (*domain.Offre, error) {
	in.Message = strings.TrimSpace(in.Message)
	problems := fieldErrors{}
	if in.ProjectID <= 0 {
		problems.add("projet_id", "is required")
	}
	if in.Amount <= 0 {
		problems.add("montant", "must be greater than zero")
	}
	if in.DelayDays <= 0 || in.DelayDays > 3650 {
		problems.add("delai_jours", "must be between 1 and 3650")
	}
	if utf8.RuneCountInString(in.Message) > domain.MaxMessageLength {
		problems.add("message", "is too long")
	}
	if err := problems.err(); err != nil {
		return nil, err
	}

	p, err := s.Repos.Projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return nil, notFound(err, "project")
	}
	if !p.IsPublic() {
		return nil, ErrNotFound
	}
	if p.OwnerID == bidder.ID {
		return nil, ErrForbidden
	}
	if !p.AcceptsOffers(s.now()) {
		return nil, ErrProjectClosed
	}
	if err := s.documents.requireVerified(ctx, bidder); err != nil {
		return nil, err
	}

	// Refused bids count as active, withdrawn ones do not / Une offre refusée reste active
	if _, err := s.Repos.Offers.FindActive(ctx, p.ID, bidder.ID); err == nil {
		return nil, ErrOfferExists
	} else if !errors.Is(err, repository.ErrNoRecord) {
		return nil, internal("failed to look up offer", err, "projet_id", p.ID)
	}

	created, err := s.Repos.Offers.Create(ctx, &domain.Offre{
		ProjectID:       p.ID,
		SubcontractorID: bidder.ID,
		Amount:          in.Amount,
		DelayDays:       in.DelayDays,
		Message:         in.Message,
		Status:          domain.OfferPending,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDup) {
			return nil, ErrOfferExists
		}
		return nil, internal("failed to create offer", err, "projet_id", p.ID)
	}

	s.Metrics.RecordOfferSubmitted()
	s.publish(ctx, events.OfferSubmitted, map[string]any{
		"offre_id": created.ID, "projet_id": p.ID, "subcontractor_id": bidder.ID, "montant": created.Amount,
	})
	s.notify(ctx, MailOfferReceived, p.OwnerID, MailData{
		"Title":     p.Title,
		"Company":   bidder.Profile.CompanyName,
		"Amount":    formatEuros(created.Amount),
		"DelayDays": created.DelayDays,
		"Message":   excerpt(created.Message, 500),
		"URL":       s.link("donneur-ordre/projets"),
	})
	slog.Info("offer submitted", "offre_id", created.ID, "projet_id", p.ID, "subcontractor_id", bidder.ID)
	return created, nil
}

// ListMine returns the bids of a subcontractor / Retourne les offres d'un sous-traitant
func (s *OfferService) ListMine(ctx context.Context, bidderID int64) ([]*domain.Offre, error) {
	offers, err := s.Repos.Offers.ListBySubcontractor(ctx, bidderID)
	if err != nil {
		return nil, internal("failed to list offers", err, "subcontractor_id", bidderID)
	}
	return offers, nil
}

// Withdraw cancels an own pending bid / Retire une offre en attente
func (s *OfferService) Withdraw(ctx context.Context, bidder *domain.User, id int64) (*domain.Offre, error) {
	o, err := s.Repos.Offers.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "offer")
	}
	if o.SubcontractorID != bidder.ID {
		return nil, ErrForbidden
	}
	if !o.Status.CanTransition(domain.OfferWithdrawn) {
		return nil, ErrInvalidTransition
	}
	if err := stale(s.Repos.Offers.UpdateStatus(ctx, id, o.Status, domain.OfferWithdrawn)); err != nil {
		return nil, txFailure("failed to withdraw offer", err, "offre_id", id)
	}

	s.Metrics.RecordOfferDecision(string(domain.OfferWithdrawn), 1)
	s.publish(ctx, events.OfferStatusChanged, map[string]any{
		"offre_id": id, "projet_id": o.ProjectID, "status": domain.OfferWithdrawn,
	})
	return s.Repos.Offers.GetByID(ctx, id)
}

// ListForProject returns bids with a bidder summary / Retourne les offres avec le profil du sous-traitant
func (s *OfferService) ListForProject(ctx context.Context, viewer *domain.User, projectID int64) ([]OfferView, error) {
	p, err := s.Repos.Projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, notFound(err, "project")
	}
	if p.OwnerID != viewer.ID && !viewer.IsStaff() {
		return nil, ErrForbidden
	}

	offers, err := s.Repos.Offers.ListByProject(ctx, projectID)
	if err != nil {
		return nil, internal("failed to list offers", err, "projet_id", projectID)
	}

	views := make([]OfferView, 0, len(offers))
	for _, o := range offers {
		view := OfferView{Offre: o, Verification: domain.VerificationBlocked}
		if summary, err := s.Repos.Evaluations.Summary(ctx, o.SubcontractorID); err == nil {
			view.Rating = summary
		}
		if bidder, err := s.Repos.Users.GetByID(ctx, o.SubcontractorID); err == nil {
			if v, err := s.documents.VerificationOf(ctx, bidder); err == nil {
				view.Verification = v.Status
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// Accept awards the project to one bid / Attribue le chantier à une offre
// The checks, the accepted offer, the refusal of the other pending ones and
// the project status run in one transaction; every write is guarded by the
// status it was checked against.
func (s *OfferService) Accept(ctx context.Context, owner *domain.User, id int64) (*domain.Offre, error) {
	var (
		o       *domain.Offre
		p       *domain.Projet
		losers  []*domain.Offre
		refused int64
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		txOffers, txProjects := s.Repos.Offers.WithTx(tx), s.Repos.Projects.WithTx(tx)

		var err error
		if o, p, err = ownedOffer(ctx, txOffers, txProjects, owner, id); err != nil {
			return err
		}
		if !o.Status.CanTransition(domain.OfferAccepted) || !p.Status.CanTransition(domain.ProjectAwarded) {
			return ErrInvalidTransition
		}
		offers, err := txOffers.ListByProject(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, other := range offers {
			if other.ID != o.ID && other.Status == domain.OfferPending {
				losers = append(losers, other)
			}
		}

		if err := stale(txOffers.UpdateStatus(ctx, o.ID, o.Status, domain.OfferAccepted)); err != nil {
			return err
		}
		if refused, err = txOffers.RefusePending(ctx, p.ID, o.ID); err != nil {
			return err
		}
		return stale(txProjects.SetStatus(ctx, p.ID, p.Status, domain.ProjectAwarded, &o.ID))
	})
	if err != nil {
		return nil, txFailure("failed to accept offer", err, "offre_id", id)
	}

	s.Metrics.RecordOfferDecision(string(domain.OfferAccepted), 1)
	s.Metrics.RecordOfferDecision(string(domain.OfferRefused), int(refused))
	s.Metrics.RecordProjectStatus(string(domain.ProjectAwarded))
	s.publish(ctx, events.OfferStatusChanged, map[string]any{
		"offre_id": o.ID, "projet_id": p.ID, "status": domain.OfferAccepted,
	})
	s.publish(ctx, events.ProjectStatus, map[string]any{
		"projet_id": p.ID, "status": domain.ProjectAwarded, "awarded_offer_id": o.ID,
	})
	s.notify(ctx, MailOfferAccepted, o.SubcontractorID, MailData{
		"Title":   p.Title,
		"Company": owner.Profile.CompanyName,
		"Amount":  formatEuros(o.Amount),
		"URL":     s.link("messages"),
	})
	for _, other := range losers {
		s.publish(ctx, events.OfferStatusChanged, map[string]any{
			"offre_id": other.ID, "projet_id": p.ID, "status": domain.OfferRefused,
		})
		s.notify(ctx, MailOfferRefused, other.SubcontractorID, MailData{
			"Title": p.Title, "Cancelled": false, "URL": s.link("projets"),
		})
	}
	slog.Info("offer accepted", "offre_id", o.ID, "projet_id", p.ID, "refused_offers", refused)
	return s.Repos.Offers.GetByID(ctx, id)
}

// Refuse declines one pending bid / Refuse une offre en attente
func (s *OfferService) Refuse(ctx context.Context, owner *domain.User, id int64) (*domain.Offre, error) {
	o, p, err := ownedOffer(ctx, s.Repos.Offers, s.Repos.Projects, owner, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransition(domain.OfferRefused) {
		return nil, ErrInvalidTransition
	}
	if err := stale(s.Repos.Offers.UpdateStatus(ctx, id, o.Status, domain.OfferRefused)); err != nil {
		return nil, txFailure("failed to refuse offer", err, "offre_id", id)
	}

	s.Metrics.RecordOfferDecision(string(domain.OfferRefused), 1)
	s.publish(ctx, events.OfferStatusChanged, map[string]any{
		"offre_id": id, "projet_id": p.ID, "status": domain.OfferRefused,
	})
	s.notify(ctx, MailOfferRefused, o.SubcontractorID, MailData{
		"Title": p.Title, "Cancelled": false, "URL": s.link("projets"),
	})
	return s.Repos.Offers.GetByID(ctx, id)
}

// ownedOffer loads an offer whose project belongs to owner / Charge une offre d'un chantier possédé
func ownedOffer(ctx context.Context, offers ports.OfferRepository, projects ports.ProjectRepository, owner *domain.User, id int64) (*domain.Offre, *domain.Projet, error) {
	o, err := offers.GetByID(ctx, id)
	if err != nil {
		return nil, nil, notFound(err, "offer")
	}
	p, err := projects.GetByID(ctx, o.ProjectID)
	if err != nil {
		return nil, nil, notFound(err, "project")
	}
	if p.OwnerID != owner.ID {
		return nil, nil, ErrForbidden
	}
	return o, p, nil
}
