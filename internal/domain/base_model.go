package domain

import "time"

// BaseModel provides common fields for domain models / Fournit les champs communs aux modèles
type BaseModel struct {
	CreatedAt time.Time  // Record creation time / Heure de création de l'enregistrement
	UpdatedAt time.Time  // Record last update time / Heure de dernière mise à jour
	DeletedAt *time.Time // Soft delete timestamp / Horodatage de suppression logique
}

// IsDeleted checks if soft-deleted / Vérifie si supprimé (soft delete)
func (bm *BaseModel) IsDeleted() bool {
	return bm.DeletedAt != nil
}

// Page describes an offset pagination window / Décrit une fenêtre de pagination
type Page struct {
	Number int // 1-based page number / Numéro de page (à partir de 1)
	Size   int
}

// Offset returns the SQL offset for the page / Retourne l'offset SQL de la page
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}
