package domain

import "time"

// ModerationStatus is the admin approval state of a project / État de modération d'un chantier
type ModerationStatus string

const (
	ModerationPending   ModerationStatus = "PENDING"
	ModerationValidated ModerationStatus = "VALIDATED"
	ModerationRejected  ModerationStatus = "REJECTED"
)

var moderationTransitions = map[ModerationStatus][]ModerationStatus{
	ModerationPending:   {ModerationValidated, ModerationRejected},
	ModerationValidated: {ModerationRejected},
	ModerationRejected:  {ModerationPending},
}

// IsValid checks the moderation status / Vérifie le statut de modération
func (s ModerationStatus) IsValid() bool {
	_, ok := moderationTransitions[s]
	return ok
}

// CanTransition reports whether s may move to next / Indique si la transition est permise
func (s ModerationStatus) CanTransition(next ModerationStatus) bool {
	return allowed(moderationTransitions[s], next)
}

// ProjectStatus is the business lifecycle of a project / Cycle de vie métier d'un chantier
type ProjectStatus string

const (
	ProjectOpen      ProjectStatus = "OUVERT"
	ProjectAwarded   ProjectStatus = "ATTRIBUE"
	ProjectCompleted ProjectStatus = "TERMINE"
	ProjectCancelled ProjectStatus = "ANNULE"
)

var projectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectOpen:      {ProjectAwarded, ProjectCancelled},
	ProjectAwarded:   {ProjectCompleted, ProjectCancelled},
	ProjectCompleted: {},
	ProjectCancelled: {},
}

// IsValid checks the project status / Vérifie le statut du chantier
func (s ProjectStatus) IsValid() bool {
	_, ok := projectTransitions[s]
	return ok
}

// CanTransition reports whether s may move to next / Indique si la transition est permise
func (s ProjectStatus) CanTransition(next ProjectStatus) bool {
	return allowed(projectTransitions[s], next)
}

// Projet is a construction job posted by a donneur d'ordre / Chantier publié par un donneur d'ordre
type Projet struct {
	ID              int64
	OwnerID         int64
	Title           string
	Description     string
	Trade           string // Corps de métier
	City            string
	PostalCode      string
	BudgetMin       *int64 // Cents / Centimes
	BudgetMax       *int64
	StartDate       *time.Time
	Deadline        *time.Time // Last day to bid / Date limite des offres
	Moderation      ModerationStatus
	RejectionReason string
	Status          ProjectStatus
	AwardedOfferID  *int64
	OfferCount      int
	Images          []ProjectImage
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsPublic reports whether visitors may see the project / Visible par tous
func (p *Projet) IsPublic() bool {
	return p.Moderation == ModerationValidated
}

// AcceptsOffers reports whether bids can be placed at now / Indique si le chantier accepte des offres
func (p *Projet) AcceptsOffers(now time.Time) bool {
	if p.Moderation != ModerationValidated || p.Status != ProjectOpen {
		return false
	}
	if p.Deadline == nil {
		return true
	}
	return !now.After(endOfDay(*p.Deadline))
}

// ProjectImage is a photo attached to a project / Photo rattachée à un chantier
type ProjectImage struct {
	ID        int64
	ProjectID int64
	FileKey   string
	URL       string
	MimeType  string
	Size      int64
	Position  int
	CreatedAt time.Time
}

// ProjectFilter narrows the public listing / Filtre de la liste publique
type ProjectFilter struct {
	Trade      string
	City       string
	PostalCode string // Prefix match / Correspondance par préfixe
	Query      string
	BudgetMin  *int64
	BudgetMax  *int64
	Since      *time.Time
	Moderation ModerationStatus
	Status     ProjectStatus
	OwnerID    int64
}

func allowed[T comparable](targets []T, next T) bool {
	for _, t := range targets {
		if t == next {
			return true
		}
	}
	return false
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
