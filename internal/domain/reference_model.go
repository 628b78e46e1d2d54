package domain

import "time"

// Reference is a past job shown on a subcontractor profile / Réalisation affichée sur le profil
type Reference struct {
	ID          int64
	UserID      int64
	Title       string
	Description string
	Year        int
	City        string
	ImageKey    string
	ImageURL    string
	CreatedAt   time.Time
}
