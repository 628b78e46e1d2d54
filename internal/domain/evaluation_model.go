package domain

import "time"

// Evaluation is a rating left after a completed project / Note laissée après un chantier terminé
type Evaluation struct {
	ID          int64
	ProjectID   int64
	EvaluatorID int64
	EvaluatedID int64
	Rating      int
	Comment     string
	CreatedAt   time.Time
}

// ValidRating checks the 1..5 scale / Vérifie l'échelle de 1 à 5
func ValidRating(r int) bool {
	return r >= 1 && r <= 5
}

// RatingSummary aggregates evaluations of one user / Synthèse des notes d'un utilisateur
type RatingSummary struct {
	Average float64
	Count   int
}
