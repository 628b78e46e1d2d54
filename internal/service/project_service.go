package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/events"
	"github.com/BakiChantier/chantier-direct-sub000/internal/storage"
)

// Pagination bounds of listings / Bornes de pagination des listes
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ProjectService manages projects of donneurs d'ordre / Gère les chantiers des donneurs d'ordre
type ProjectService struct {
	Deps
	documents *DocumentService
}

// NewProjectService creates the project service / Crée le service des chantiers
func NewProjectService(d Deps, documents *DocumentService) *ProjectService {
	return &ProjectService{Deps: d, documents: documents}
}

// ProjectInput holds editable project fields / Champs modifiables d'un chantier
type ProjectInput struct {
	Title       string
	Description string
	Trade       string
	City        string
	PostalCode  string
	BudgetMin   *int64
	BudgetMax   *int64
	StartDate   *time.Time
	Deadline    *time.Time
}

func (in *ProjectInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Trade = strings.ToLower(strings.TrimSpace(in.Trade))
	in.City = strings.TrimSpace(in.City)
	in.PostalCode = strings.TrimSpace(in.PostalCode)
}

func (in *ProjectInput) validate(now time.Time) error {
	problems := fieldErrors{}
	if n := utf8.RuneCountInString(in.Title); n < 3 || n > 200 {
		problems.add("title", "must be between 3 and 200 characters")
	}
	if in.Description == "" {
		problems.add("description", "is required")
	} else if utf8.RuneCountInString(in.Description) > 10000 {
		problems.add("description", "must be at most 10000 characters")
	}
	if in.Trade == "" {
		problems.add("trade", "is required")
	}
	if in.City == "" {
		problems.add("city", "is required")
	}
	if !isPostalCode(in.PostalCode) {
		problems.add("postal_code", "must be 5 digits")
	}
	if in.BudgetMin != nil && *in.BudgetMin < 0 {
		problems.add("budget_min", "must be positive")
	}
	if in.BudgetMax != nil && *in.BudgetMax < 0 {
		problems.add("budget_max", "must be positive")
	}
	if in.BudgetMin != nil && in.BudgetMax != nil && *in.BudgetMin > *in.BudgetMax {
		problems.add("budget_max", "must be greater than budget_min")
	}
	if in.Deadline != nil && startOfDay(*in.Deadline).Before(startOfDay(now)) {
		problems.add("deadline", "must not be in the past")
	}
	return problems.err()
}

func (in *ProjectInput) apply(p *domain.Projet) {
	p.Title = in.Title
	p.Description = in.Description
	p.Trade = in.Trade
	p.City = in.City
	p.PostalCode = in.PostalCode
	p.BudgetMin = in.BudgetMin
	p.BudgetMax = in.BudgetMax
	p.StartDate = in.StartDate
	p.Deadline = in.Deadline
}

// Create posts a project for moderation / Publie un chantier soumis à modération
func (s *ProjectService) Create(ctx context.Context, owner *domain.User, in ProjectInput) (*domain.Projet, error) {
	in.normalize()
	if err := in.validate(s.now()); err != nil {
		return nil, err
	}
	if err := s.documents.requireVerified(ctx, owner); err != nil {
		return nil, err
	}

	p := &domain.Projet{
		OwnerID:    owner.ID,
		Moderation: domain.ModerationPending,
		Status:     domain.ProjectOpen,
	}
	in.apply(p)

	created, err := s.Repos.Projects.Create(ctx, p)
	if err != nil {
		return nil, internal("failed to create project", err, "owner_id", owner.ID)
	}

	s.Metrics.RecordProjectCreated()
	s.publish(ctx, events.ProjectSubmitted, map[string]any{
		"projet_id": created.ID, "owner_id": owner.ID, "trade": created.Trade, "city": created.City,
	})
	s.notifyModerators(ctx, owner, created)
	slog.Info("project submitted", "projet_id", created.ID, "owner_id", owner.ID)
	return created, nil
}

func (s *ProjectService) notifyModerators(ctx context.Context, owner *domain.User, p *domain.Projet) {
	if s.Notifier == nil {
		return
	}
	recipients, err := s.Repos.Users.EmailsByRole(ctx, domain.RoleAdmin, domain.RoleModerator)
	if err != nil {
		slog.Warn("failed to list moderators", "err", err)
	}
	recipients = appendUnique(recipients, s.Config.Admin.NotifyEmails...)
	s.Notifier.Notify(MailProjectSubmitted, recipients, MailData{
		"Title":      p.Title,
		"Company":    owner.Profile.CompanyName,
		"Trade":      p.Trade,
		"City":       p.City,
		"PostalCode": p.PostalCode,
		"URL":        s.link("admin/projets"),
	})
}

// ListMine returns every project of owner / Retourne tous les chantiers du propriétaire
func (s *ProjectService) ListMine(ctx context.Context, ownerID int64) ([]*domain.Projet, error) {
	projets, _, err := s.Repos.Projects.List(ctx, domain.ProjectFilter{OwnerID: ownerID}, domain.Page{})
	if err != nil {
		return nil, internal("failed to list projects", err, "owner_id", ownerID)
	}
	return projets, nil
}

// owned loads a project and checks its owner / Charge un chantier et vérifie son propriétaire
func (s *ProjectService) owned(ctx context.Context, owner *domain.User, id int64) (*domain.Projet, error) {
	p, err := s.Repos.Projects.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "project")
	}
	if p.OwnerID != owner.ID {
		return nil, ErrForbidden
	}
	return p, nil
}

// Update edits an open project / Modifie un chantier ouvert
// A rejected project goes back to moderation.
func (s *ProjectService) Update(ctx context.Context, owner *domain.User, id int64, in ProjectInput) (*domain.Projet, error) {
	p, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.ProjectOpen {
		return nil, ErrInvalidTransition
	}
	in.normalize()
	if err := in.validate(s.now()); err != nil {
		return nil, err
	}

	read := p.Moderation
	resubmitted := read == domain.ModerationRejected
	in.apply(p)
	if resubmitted {
		p.Moderation = domain.ModerationPending
		p.RejectionReason = ""
	}
	if err := stale(s.Repos.Projects.Update(ctx, p, read)); err != nil {
		return nil, txFailure("failed to update project", err, "projet_id", id)
	}

	if resubmitted {
		s.publish(ctx, events.ProjectSubmitted, map[string]any{
			"projet_id": p.ID, "owner_id": owner.ID, "resubmitted": true,
		})
		s.notifyModerators(ctx, owner, p)
	}
	return s.Repos.Projects.GetByID(ctx, id)
}

// Cancel closes a project and refuses its pending offers / Annule un chantier et refuse les offres en attente
func (s *ProjectService) Cancel(ctx context.Context, owner *domain.User, id int64) (*domain.Projet, error) {
	p, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanTransition(domain.ProjectCancelled) {
		return nil, ErrInvalidTransition
	}
	var (
		offers  []*domain.Offre
		refused int64
	)
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		txOffers := s.Repos.Offers.WithTx(tx)
		if offers, err = txOffers.ListByProject(ctx, id); err != nil {
			return err
		}
		if err := stale(s.Repos.Projects.WithTx(tx).SetStatus(ctx, id, p.Status, domain.ProjectCancelled, nil)); err != nil {
			return err
		}
		refused, err = txOffers.RefusePending(ctx, id, 0)
		return err
	})
	if err != nil {
		return nil, txFailure("failed to cancel project", err, "projet_id", id)
	}

	s.Metrics.RecordProjectStatus(string(domain.ProjectCancelled))
	s.Metrics.RecordOfferDecision(string(domain.OfferRefused), int(refused))
	s.publish(ctx, events.ProjectStatus, map[string]any{"projet_id": id, "status": domain.ProjectCancelled})
	for _, o := range offers {
		if o.Status != domain.OfferPending {
			continue
		}
		s.publish(ctx, events.OfferStatusChanged, map[string]any{
			"offre_id": o.ID, "projet_id": id, "status": domain.OfferRefused,
		})
		s.notify(ctx, MailOfferRefused, o.SubcontractorID, MailData{
			"Title": p.Title, "Cancelled": true, "URL": s.link("projets"),
		})
	}
	slog.Info("project cancelled", "projet_id", id, "refused_offers", refused)
	return s.Repos.Projects.GetByID(ctx, id)
}

// Complete marks an awarded project as done / Marque un chantier attribué comme terminé
func (s *ProjectService) Complete(ctx context.Context, owner *domain.User, id int64) (*domain.Projet, error) {
	p, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanTransition(domain.ProjectCompleted) {
		return nil, ErrInvalidTransition
	}
	if err := stale(s.Repos.Projects.SetStatus(ctx, id, p.Status, domain.ProjectCompleted, nil)); err != nil {
		return nil, txFailure("failed to complete project", err, "projet_id", id)
	}

	s.Metrics.RecordProjectStatus(string(domain.ProjectCompleted))
	s.publish(ctx, events.ProjectStatus, map[string]any{"projet_id": id, "status": domain.ProjectCompleted})
	return s.Repos.Projects.GetByID(ctx, id)
}

// ListPublic lists validated open projects / Liste les chantiers validés et ouverts
func (s *ProjectService) ListPublic(ctx context.Context, filter domain.ProjectFilter, page domain.Page) ([]*domain.Projet, int, error) {
	filter.OwnerID = 0
	filter.Moderation = domain.ModerationValidated
	filter.Status = domain.ProjectOpen
	filter.Trade = strings.ToLower(strings.TrimSpace(filter.Trade))

	projets, total, err := s.Repos.Projects.List(ctx, filter, NormalizePage(page))
	if err != nil {
		return nil, 0, internal("failed to list public projects", err)
	}
	return projets, total, nil
}

// Get returns a project visible to viewer, with images / Retourne un chantier visible avec ses photos
// viewer may be nil for anonymous visitors.
func (s *ProjectService) Get(ctx context.Context, viewer *domain.User, id int64) (*domain.Projet, error) {
	p, err := s.Repos.Projects.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "project")
	}
	if !p.IsPublic() && !isOwner(viewer, p.OwnerID) && (viewer == nil || !viewer.IsStaff()) {
		return nil, ErrNotFound
	}
	images, err := s.Repos.Images.ListByProject(ctx, id)
	if err != nil {
		return nil, internal("failed to list project images", err, "projet_id", id)
	}
	for i := range images {
		images[i].URL = s.Storage.URL(images[i].FileKey)
	}
	p.Images = images
	return p, nil
}

// AddImage attaches a photo to an owned project / Ajoute une photo à un chantier
func (s *ProjectService) AddImage(ctx context.Context, owner *domain.User, id int64, body io.Reader) (*domain.ProjectImage, error) {
	p, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if p.Status == domain.ProjectCancelled || p.Status == domain.ProjectCompleted {
		return nil, ErrInvalidTransition
	}

	limit := s.Config.Storage.MaxImages
	if limit <= 0 {
		limit = 10
	}
	count, err := s.Repos.Images.CountByProject(ctx, id)
	if err != nil {
		return nil, internal("failed to count project images", err, "projet_id", id)
	}
	if count >= limit {
		return nil, ErrLimitReached
	}

	obj, err := storage.Put(ctx, s.Storage, uploadKey("projets", id), body,
		storageLimit(s.Config.Storage.MaxImageBytes, 5<<20), storage.ImageTypes)
	if err != nil {
		return nil, err
	}
	img, err := s.Repos.Images.Add(ctx, &domain.ProjectImage{
		ProjectID: id,
		FileKey:   obj.Key,
		MimeType:  obj.MimeType,
		Size:      obj.Size,
		Position:  count,
	})
	if err != nil {
		s.discard(ctx, obj)
		return nil, internal("failed to record project image", err, "projet_id", id)
	}
	img.URL = obj.URL
	return img, nil
}

// DeleteImage removes a photo of an owned project / Supprime une photo d'un chantier
func (s *ProjectService) DeleteImage(ctx context.Context, owner *domain.User, projectID, imageID int64) error {
	if _, err := s.owned(ctx, owner, projectID); err != nil {
		return err
	}
	img, err := s.Repos.Images.GetByID(ctx, imageID)
	if err != nil {
		return notFound(err, "image")
	}
	if img.ProjectID != projectID {
		return ErrNotFound
	}
	if err := s.Repos.Images.Delete(ctx, imageID); err != nil {
		return internal("failed to delete project image", err, "image_id", imageID)
	}
	if err := s.Storage.Delete(ctx, img.FileKey); err != nil {
		slog.Warn("failed to delete image file", "key", img.FileKey, "err", err)
	}
	return nil
}

// NormalizePage applies default and maximum sizes / Applique la taille par défaut et maximale
func NormalizePage(p domain.Page) domain.Page {
	if p.Number < 1 {
		p.Number = 1
	}
	switch {
	case p.Size <= 0:
		p.Size = DefaultPageSize
	case p.Size > MaxPageSize:
		p.Size = MaxPageSize
	}
	return p
}
