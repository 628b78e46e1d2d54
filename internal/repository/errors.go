package repository

import "github.com/BakiChantier/chantier-direct-sub000/internal/repository/db"

// Re-export common errors for callers outside the repository tree
var (
	ErrNoRecord            = db.ErrNoRecord
	ErrDup                 = db.ErrDup
	ErrForeignKeyViolation = db.ErrForeignKeyViolation
	ErrCheckViolation      = db.ErrCheckViolation
	ErrBusy                = db.ErrBusy
	ErrLocked              = db.ErrLocked
)
