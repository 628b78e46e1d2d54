package ports

import (
	"context"
	"time"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
)

// ProjectRepository persists projects / Persiste les chantiers
type ProjectRepository interface {
	// Create inserts a project and returns it with its ID / Insère un chantier
	Create(ctx context.Context, p *domain.Projet) (*domain.Projet, error)

	// GetByID retrieves a project with its offer count / Récupère un chantier
	GetByID(ctx context.Context, id int64) (*domain.Projet, error)

	// Update saves editable fields of an open project whose moderation is still from
	// Enregistre les champs modifiables si la modération vaut toujours from
	// ErrNoRecord means the project moved meanwhile.
	Update(ctx context.Context, p *domain.Projet, from domain.ModerationStatus) error

	// List returns a filtered page and the total / Retourne une page filtrée et le total
	List(ctx context.Context, filter domain.ProjectFilter, page domain.Page) ([]*domain.Projet, int, error)

	// SetModeration moves moderation from one status to another / Change la modération de from vers to
	SetModeration(ctx context.Context, id int64, from, to domain.ModerationStatus, reason string) error

	// SetStatus moves the business status from one value to another / Change le statut métier de from vers to
	SetStatus(ctx context.Context, id int64, from, to domain.ProjectStatus, awardedOfferID *int64) error

	// CountByModeration groups projects by moderation status / Compte par statut de modération
	CountByModeration(ctx context.Context) (map[domain.ModerationStatus]int, error)

	// WithTx returns repository bound to a transaction / Retourne le référentiel lié à une transaction
	WithTx(dbtx DBTX) ProjectRepository
}

// ProjectImageRepository persists project photos / Persiste les photos de chantier
type ProjectImageRepository interface {
	Add(ctx context.Context, img *domain.ProjectImage) (*domain.ProjectImage, error)
	ListByProject(ctx context.Context, projectID int64) ([]domain.ProjectImage, error)
	GetByID(ctx context.Context, id int64) (*domain.ProjectImage, error)
	CountByProject(ctx context.Context, projectID int64) (int, error)
	Delete(ctx context.Context, id int64) error
}

// OfferRepository persists bids / Persiste les offres
type OfferRepository interface {
	// Create inserts a pending offer / Insère une offre en attente
	Create(ctx context.Context, o *domain.Offre) (*domain.Offre, error)

	// GetByID retrieves an offer / Récupère une offre
	GetByID(ctx context.Context, id int64) (*domain.Offre, error)

	// ListByProject returns offers with the bidder company / Offres d'un chantier avec l'entreprise
	ListByProject(ctx context.Context, projectID int64) ([]*domain.Offre, error)

	// ListBySubcontractor returns offers with the project title / Offres d'un sous-traitant
	ListBySubcontractor(ctx context.Context, subcontractorID int64) ([]*domain.Offre, error)

	// FindActive returns the non-withdrawn offer of a bidder on a project / Offre non retirée
	FindActive(ctx context.Context, projectID, subcontractorID int64) (*domain.Offre, error)

	// UpdateStatus moves one offer from one status to another / Change le statut d'une offre de from vers to
	// ErrNoRecord means the offer is no longer in from.
	UpdateStatus(ctx context.Context, id int64, from, to domain.OfferStatus) error

	// RefusePending refuses every pending offer except one / Refuse les offres en attente sauf une
	RefusePending(ctx context.Context, projectID, exceptID int64) (int64, error)

	// CountByStatus groups offers by status / Compte par statut
	CountByStatus(ctx context.Context) (map[domain.OfferStatus]int, error)

	// WithTx returns repository bound to a transaction / Retourne le référentiel lié à une transaction
	WithTx(dbtx DBTX) OfferRepository
}

// MessageRepository persists private messages / Persiste les messages privés
type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) (*domain.Message, error)

	// Thread returns messages between two users, oldest first / Fil entre deux utilisateurs
	Thread(ctx context.Context, userID, otherID int64, projectID *int64, page domain.Page) ([]*domain.Message, int, error)

	// Conversations returns one summary per counterpart / Un résumé par interlocuteur
	Conversations(ctx context.Context, userID int64) ([]domain.Conversation, error)

	// MarkRead marks messages from sender to recipient read / Marque les messages comme lus
	MarkRead(ctx context.Context, recipientID, senderID int64, at time.Time) (int64, error)

	// UnreadCount counts unread messages of a recipient / Compte les messages non lus
	UnreadCount(ctx context.Context, recipientID int64) (int, error)
}

// DocumentRepository persists compliance documents / Persiste les justificatifs
type DocumentRepository interface {
	Create(ctx context.Context, d *domain.Document) (*domain.Document, error)
	GetByID(ctx context.Context, id int64) (*domain.Document, error)

	// ListByUser returns documents of a user, newest first / Documents d'un utilisateur
	ListByUser(ctx context.Context, userID int64) ([]domain.Document, error)

	// ListByStatus returns a review queue page / Retourne une page de la file de revue
	ListByStatus(ctx context.Context, status domain.DocumentStatus, page domain.Page) ([]*domain.Document, int, error)

	// Review stores a moderator decision / Enregistre la décision du modérateur
	Review(ctx context.Context, id int64, status domain.DocumentStatus, reason string, expiresAt *time.Time, reviewerID int64) error

	// ExpireValidated flips validated documents past expiry / Expire les documents validés échus
	ExpireValidated(ctx context.Context, now time.Time) ([]domain.Document, error)

	CountByStatus(ctx context.Context, status domain.DocumentStatus) (int, error)
	Delete(ctx context.Context, id int64) error
}

// EvaluationRepository persists ratings / Persiste les évaluations
type EvaluationRepository interface {
	Create(ctx context.Context, e *domain.Evaluation) (*domain.Evaluation, error)
	ListForUser(ctx context.Context, userID int64) ([]*domain.Evaluation, error)
	Summary(ctx context.Context, userID int64) (domain.RatingSummary, error)
}

// ReferenceRepository persists subcontractor references / Persiste les références
type ReferenceRepository interface {
	Create(ctx context.Context, r *domain.Reference) (*domain.Reference, error)
	GetByID(ctx context.Context, id int64) (*domain.Reference, error)
	ListByUser(ctx context.Context, userID int64) ([]*domain.Reference, error)
	Delete(ctx context.Context, id int64) error
}
