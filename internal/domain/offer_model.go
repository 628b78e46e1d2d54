package domain

import "time"

// OfferStatus is the lifecycle of a bid / Cycle de vie d'une offre
type OfferStatus string

const (
	OfferPending   OfferStatus = "EN_ATTENTE"
	OfferAccepted  OfferStatus = "ACCEPTEE"
	OfferRefused   OfferStatus = "REFUSEE"
	OfferWithdrawn OfferStatus = "RETIREE"
)

var offerTransitions = map[OfferStatus][]OfferStatus{
	OfferPending:   {OfferAccepted, OfferRefused, OfferWithdrawn},
	OfferAccepted:  {},
	OfferRefused:   {},
	OfferWithdrawn: {},
}

// IsValid checks the offer status / Vérifie le statut de l'offre
func (s OfferStatus) IsValid() bool {
	_, ok := offerTransitions[s]
	return ok
}

// CanTransition reports whether s may move to next / Indique si la transition est permise
func (s OfferStatus) CanTransition(next OfferStatus) bool {
	return allowed(offerTransitions[s], next)
}

// Offre is a bid placed by a sous-traitant / Offre déposée par un sous-traitant
type Offre struct {
	ID              int64
	ProjectID       int64
	SubcontractorID int64
	Amount          int64 // Cents / Centimes
	DelayDays       int
	Message         string
	Status          OfferStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProjectTitle    string        // Joined for listings / Jointure pour les listes
	ProjectStatus   ProjectStatus // Joined for listings / Jointure pour les listes
	CompanyName     string        // Subcontractor company / Entreprise du sous-traitant
}
