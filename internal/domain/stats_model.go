package domain

// Stats is the admin dashboard snapshot / Instantané du tableau de bord admin
type Stats struct {
	UsersByRole          map[UserRole]int
	ProjectsByModeration map[ModerationStatus]int
	OffersByStatus       map[OfferStatus]int
	DocumentsPending     int
}
