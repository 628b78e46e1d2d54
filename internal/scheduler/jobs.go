package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// TokenPurger deletes expired refresh tokens / Supprime les refresh tokens expirés
type TokenPurger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// DocumentExpirer flips validated documents past their date / Expire les documents échus
type DocumentExpirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// TokenPurge builds the refresh token cleanup job / Construit la purge des tokens
func TokenPurge(store TokenPurger) Func {
	return func(ctx context.Context) error {
		n, err := store.PurgeExpired(ctx, time.Now())
		if err != nil {
			return err
		}
		if n > 0 {
			slog.Info("purged expired refresh tokens", "count", n)
		}
		return nil
	}
}

// DocumentExpiry builds the document expiry sweep / Construit le balayage des documents expirés
func DocumentExpiry(docs DocumentExpirer) Func {
	return func(ctx context.Context) error {
		_, err := docs.ExpireDue(ctx)
		return err
	}
}
