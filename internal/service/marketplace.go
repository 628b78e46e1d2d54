package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BakiChantier/chantier-direct-sub000/internal/config"
	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
	"github.com/BakiChantier/chantier-direct-sub000/internal/repository"
	"github.com/BakiChantier/chantier-direct-sub000/internal/storage"
)

// MarketplaceMetrics records business counters / Enregistre les compteurs métier
type MarketplaceMetrics interface {
	RecordProjectCreated()
	RecordModeration(decision string)
	RecordProjectStatus(status string)
	RecordOfferSubmitted()
	RecordOfferDecision(status string, n int)
	RecordDocumentUploaded(docType string)
	RecordDocumentReview(status string, n int)
	RecordMessageSent()
	RecordContactRequest()
}

// Deps groups collaborators of the marketplace services / Dépendances des services de la place de marché
type Deps struct {
	DB       *sql.DB
	Repos    repository.Repositories
	Storage  ports.FileStorage
	Events   ports.EventPublisher
	Notifier *Notifier
	Metrics  MarketplaceMetrics
	Config   *config.Config
	Now      func() time.Time // Overridden in tests / Remplacé dans les tests
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// publish sends a domain event, failures are only logged / Publie un événement, les échecs sont journalisés
func (d Deps) publish(ctx context.Context, subject string, payload any) {
	if d.Events == nil {
		return
	}
	if err := d.Events.Publish(ctx, subject, payload); err != nil {
		slog.Warn("failed to publish event", "subject", subject, "err", err)
	}
}

// notify emails one user by id / Envoie un email à un utilisateur
func (d Deps) notify(ctx context.Context, mail Mail, userID int64, data MailData) {
	if d.Notifier == nil {
		return
	}
	user, err := d.Repos.Users.GetByID(ctx, userID)
	if err != nil {
		slog.Warn("notification recipient not found", "template", mail, "user_id", userID, "err", err)
		return
	}
	d.Notifier.Notify(mail, []string{user.Email}, data)
}

func (d Deps) link(path string) string {
	if d.Notifier == nil {
		return path
	}
	return d.Notifier.Link(path)
}

// inTx runs fn in a transaction / Exécute fn dans une transaction
// Inside fn only repositories bound to tx may be used.
func (d Deps) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return runInTx(ctx, d.DB, fn)
}

// runInTx commits when fn succeeds and rolls back otherwise / Valide si fn réussit, annule sinon
func runInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// storageLimit returns n or the fallback when unset / Retourne n ou la valeur par défaut
func storageLimit(n, fallback int64) int64 {
	if n > 0 {
		return n
	}
	return fallback
}

// notFound translates a missing record / Traduit un enregistrement absent
func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNoRecord) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// stale reports a guarded write that matched no row as a refused transition
// Écriture gardée sans effet : le statut a changé entre-temps
func stale(err error) error {
	if errors.Is(err, repository.ErrNoRecord) {
		return ErrInvalidTransition
	}
	return err
}

// txFailure keeps business errors returned from a transaction / Conserve les erreurs métier d'une transaction
func txFailure(msg string, err error, args ...any) error {
	switch {
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
		return err
	case errors.Is(err, repository.ErrDup):
		// A concurrent acceptance hits the unique index / Une acceptation concurrente viole l'index unique
		return ErrInvalidTransition
	}
	return internal(msg, err, args...)
}

// internal logs err and hides it behind ErrInternal / Journalise et masque l'erreur
func internal(msg string, err error, args ...any) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	slog.Error(msg, append(args, "err", err)...)
	return ErrInternal
}

// uploadKey builds a storage prefix per owner / Construit le préfixe de stockage par propriétaire
func uploadKey(kind string, ownerID int64) string {
	return fmt.Sprintf("%s/%d", kind, ownerID)
}

// discard removes a stored file after a failed insert / Supprime un fichier orphelin
func (d Deps) discard(ctx context.Context, obj *storage.Object) {
	if obj == nil {
		return
	}
	if err := d.Storage.Delete(context.WithoutCancel(ctx), obj.Key); err != nil {
		slog.Warn("failed to remove orphan upload", "key", obj.Key, "err", err)
	}
}

func isOwner(u *domain.User, ownerID int64) bool {
	return u != nil && u.ID == ownerID
}
