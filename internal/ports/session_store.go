package ports

import (
	"context"
	"errors"
	"time"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
)

// ErrNotFound returned when resource not found / Retourné quand la ressource n'est pas trouvée
var ErrNotFound = errors.New("not found")

// SessionReader looks up the refresh token behind a member session
// Retrouve le refresh token d'une session
type SessionReader interface {
	Get(ctx context.Context, token string) (*domain.RefreshToken, error)
}

// SessionWriter opens and closes member sessions / Ouvre et ferme les sessions
// Revoked tokens stay stored until PurgeExpired drops them, so a replayed
// token is told apart from an unknown one.
type SessionWriter interface {
	Save(ctx context.Context, token *domain.RefreshToken) error
	Revoke(ctx context.Context, token string) error
	// RevokeAllForUser closes every session of one account, on login or password change
	RevokeAllForUser(ctx context.Context, userID int64) error
	// PurgeExpired deletes tokens expired before the cutoff and reports how many
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// RefreshTokenStore stores one refresh token per member session / Stocke un refresh token par session
type RefreshTokenStore interface {
	SessionReader
	SessionWriter
	WithTx(tx DBTX) RefreshTokenStore
}
