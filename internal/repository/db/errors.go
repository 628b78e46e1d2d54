package db

import "errors"

// Common database errors / Erreurs communes de base de données
var (
	ErrNoRecord            = errors.New("no matching record found")
	ErrDup                 = errors.New("record already exists")
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")
	ErrCheckViolation      = errors.New("check constraint violation")
	ErrBusy                = errors.New("database is busy")
	ErrLocked              = errors.New("database is locked")
)
