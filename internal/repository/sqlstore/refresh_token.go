package sqlstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
	"github.com/BakiChantier/chantier-direct-sub000/internal/repository/db"
)

var _ ports.RefreshTokenStore = (*refreshTokenStore)(nil)

// refreshTokenStore implements RefreshTokenStore / Implémente RefreshTokenStore
// Only the SHA-256 of a token is persisted.
type refreshTokenStore struct {
	store
}

// NewRefreshTokenStore creates token store / Crée le magasin de tokens
func NewRefreshTokenStore(dbtx ports.DBTX, d Dialect) ports.RefreshTokenStore {
	return &refreshTokenStore{store: newStore(dbtx, d)}
}

// WithTx returns store with transaction / Retourne le magasin avec transaction
func (s *refreshTokenStore) WithTx(tx ports.DBTX) ports.RefreshTokenStore {
	return &refreshTokenStore{store: newStore(tx, s.dialect)}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Save stores hashed refresh token / Stocke le token haché
func (s *refreshTokenStore) Save(ctx context.Context, t *domain.RefreshToken) error {
	if t == nil {
		return errors.New("the refresh token is null")
	}
	t.Token = hashToken(t.Token)

	_, err := s.exec(ctx, s.qb().Insert("refresh_tokens").
		Columns("token", "user_id", "issue_at", "expires_at", "is_revoked", "ip_hash", "ua_hash").
		Values(t.Token, t.UserID, t.IssueAt.UTC(), t.ExpiresAt.UTC(), t.IsRevoked, t.IPHash, t.UAHash))
	return err
}

// Get retrieves refresh token by value / Récupère le token par valeur
func (s *refreshTokenStore) Get(ctx context.Context, tokenString string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := s.queryRow(ctx, s.qb().
		Select("token", "user_id", "issue_at", "expires_at", "is_revoked", "ip_hash", "ua_hash").
		From("refresh_tokens").
		Where(sq.Eq{"token": hashToken(tokenString)}),
		&t.Token, &t.UserID, &t.IssueAt, &t.ExpiresAt, &t.IsRevoked, &t.IPHash, &t.UAHash,
	)
	if errors.Is(err, db.ErrNoRecord) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Revoke marks token as revoked / Marque le token comme révoqué
func (s *refreshTokenStore) Revoke(ctx context.Context, tokenString string) error {
	_, err := s.exec(ctx, s.qb().Update("refresh_tokens").
		Set("is_revoked", true).
		Where(sq.Eq{"token": hashToken(tokenString)}))
	return err
}

// RevokeAllForUser revokes all user tokens / Révoque tous les tokens de l'utilisateur
func (s *refreshTokenStore) RevokeAllForUser(ctx context.Context, userID int64) error {
	_, err := s.exec(ctx, s.qb().Update("refresh_tokens").
		Set("is_revoked", true).
		Where(sq.Eq{"user_id": userID, "is_revoked": false}))
	return err
}

// PurgeExpired deletes expired tokens / Supprime les tokens expirés
func (s *refreshTokenStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	return s.exec(ctx, s.qb().Delete("refresh_tokens").Where(sq.Lt{"expires_at": before.UTC()}))
}
