package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BakiChantier/chantier-direct-sub000/internal/config"
	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
	"github.com/BakiChantier/chantier-direct-sub000/internal/service/auth"
	"golang.org/x/crypto/bcrypt"
)

// locksIdle is how long an unused account lock is kept / Durée de conservation d'un verrou inutilisé
const locksIdle = 15 * time.Minute

// AuthService opens and rotates member sessions / Ouvre et renouvelle les sessions des membres
type AuthService struct {
	users    ports.UserReader
	security ports.AccountSecurityRepository
	sessions ports.RefreshTokenStore
	conf     *config.Config
	db       *sql.DB
	locks    *accountLocks
	metrics  AuthMetricsRecorder
}

// AuthMetricsRecorder records auth metrics / Enregistre les métriques d'authentification
type AuthMetricsRecorder interface {
	RecordAccountLockout()
	RecordSession(role string)
}

// clientBinding ties a refresh token to the client that received it / Lie un refresh token à son client
type clientBinding struct {
	ipHash string
	uaHash string
}

func (b clientBinding) matches(t *domain.RefreshToken) bool {
	return t.IPHash == b.ipHash && t.UAHash == b.uaHash
}

// NewAuthService creates authentication service instance / Crée une instance de service d'authentification
func NewAuthService(
	repo ports.UserRepository,
	sessions ports.RefreshTokenStore,
	conf *config.Config,
	db *sql.DB,
	metrics AuthMetricsRecorder,
) *AuthService {
	return &AuthService{
		users:    repo,
		security: repo,
		sessions: sessions,
		conf:     conf,
		db:       db,
		locks:    newAccountLocks(locksIdle),
		metrics:  metrics,
	}
}

// Login checks the password and opens a session / Vérifie le mot de passe et ouvre une session
// Every older session of the account is revoked; a successful login clears
// the failed attempt counter in the same transaction.
func (s *AuthService) Login(ctx context.Context, email, password, ipHash, uaHash string) (*domain.User, *auth.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if user.IsLocked() {
		s.metrics.RecordAccountLockout()
		return nil, nil, lockedFor(time.Until(*user.LockedUntil))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, s.recordFailure(ctx, user)
	}
	if !user.EmailVerified {
		return nil, nil, ErrEmailNotVerified
	}

	unlock := s.locks.lock(user.ID)
	defer unlock()

	var pair *auth.TokenPair
	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		sessions := s.sessions.WithTx(tx)
		if err := sessions.RevokeAllForUser(ctx, user.ID); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		if pair, err = s.issue(ctx, sessions, user, clientBinding{ipHash, uaHash}); err != nil {
			return err
		}
		if err := s.security.WithTx(tx).ResetFailedAttempts(ctx, user.ID); err != nil {
			slog.Error("failed to reset failed login attempts", "user_id", user.ID, "err", err)
		}
		return nil
	})
	if err != nil {
		slog.Error("failed to open session", "user_id", user.ID, "role", user.Role, "err", err)
		return nil, nil, ErrInternal
	}

	s.metrics.RecordSession(string(user.Role))
	slog.Info("session opened", "user_id", user.ID, "role", user.Role)
	return user, pair, nil
}

// recordFailure counts a wrong password and locks the account at the limit
// Compte un mauvais mot de passe et verrouille le compte au seuil
func (s *AuthService) recordFailure(ctx context.Context, user *domain.User) error {
	if user.FailedLoginAttempts+1 < s.conf.Security.MaxFailedAttempts {
		if err := s.security.IncrementFailedAttempts(ctx, user.ID); err != nil {
			slog.Error("failed to record failed login attempt", "user_id", user.ID, "err", err)
		}
		return ErrInvalidCredentials
	}

	until := time.Now().Add(s.conf.Security.LockoutDuration)
	if err := s.security.LockAccount(ctx, user.ID, until); err != nil {
		slog.Error("failed to lock account", "user_id", user.ID, "err", err)
	}
	s.metrics.RecordAccountLockout()
	slog.Warn("account locked", "user_id", user.ID, "role", user.Role, "until", until)
	return lockedFor(s.conf.Security.LockoutDuration)
}

func lockedFor(d time.Duration) error {
	return fmt.Errorf("%w. Try again in %s", ErrAccountLocked, formatLockoutDuration(d))
}

// issue signs a token pair for user and stores its refresh half / Signe une paire et stocke le refresh token
func (s *AuthService) issue(ctx context.Context, sessions ports.RefreshTokenStore, user *domain.User, client clientBinding) (*auth.TokenPair, error) {
	pair, err := auth.GenerateTokenPair(
		user.ID,
		string(user.Role),
		s.conf.Auth.JWTSecret,
		s.conf.Auth.AccessTokenDuration,
		s.conf.Auth.RefreshTokenDuration,
	)
	if err != nil {
		return nil, fmt.Errorf("sign tokens: %w", err)
	}

	now := time.Now()
	if err := sessions.Save(ctx, &domain.RefreshToken{
		Token:     pair.RefreshToken,
		UserID:    user.ID,
		IssueAt:   now,
		ExpiresAt: now.Add(s.conf.Auth.RefreshTokenDuration),
		IPHash:    client.ipHash,
		UAHash:    client.uaHash,
	}); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return pair, nil
}

// RefreshToken rotates a refresh token bound to the same client / Renouvelle un refresh token du même client
// The new access token carries the current role, so a role change made by
// an admin applies at the next refresh.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken, ipHash, uaHash string) (*auth.TokenPair, error) {
	record, err := s.sessions.Get(ctx, refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	switch {
	case record.IsRevoked:
		return nil, fmt.Errorf("%w: revoked refresh token", ErrInvalidToken)
	case time.Now().After(record.ExpiresAt):
		return nil, fmt.Errorf("%w: expired refresh token", ErrTokenExpired)
	}

	client := clientBinding{ipHash, uaHash}
	if !client.matches(record) {
		slog.Warn("refresh token binding validation failed",
			"user_id", record.UserID,
			"expected_ip", record.IPHash,
			"got_ip", ipHash,
			"expected_ua", record.UAHash,
			"got_ua", uaHash,
		)
		return nil, ErrTokenBinding
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	unlock := s.locks.lock(user.ID)
	defer unlock()

	var pair *auth.TokenPair
	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		sessions := s.sessions.WithTx(tx)
		if err := sessions.Revoke(ctx, refreshToken); err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
		pair, err = s.issue(ctx, sessions, user, client)
		return err
	})
	if err != nil {
		slog.Error("failed to rotate session", "user_id", user.ID, "err", err)
		return nil, ErrInternal
	}
	return pair, nil
}

// ValidateCredentials checks if credentials are valid / Vérifie si les identifiants sont valides
func (s *AuthService) ValidateCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// RevokeAllTokens closes every session of a user / Ferme toutes les sessions d'un utilisateur
func (s *AuthService) RevokeAllTokens(ctx context.Context, userID int64) error {
	unlock := s.locks.lock(userID)
	defer unlock()

	if err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		slog.Error("failed to revoke tokens", "err", err, "user_id", userID)
		return ErrInternal
	}

	slog.Info("all refresh tokens revoked", "user_id", userID)
	return nil
}

// accountLocks serializes session changes per account / Sérialise les sessions par compte
// Idle entries are dropped while acquiring, at most once per idle period.
type accountLocks struct {
	mu        sync.Mutex
	idle      time.Duration
	entries   map[int64]*lockEntry
	lastPrune time.Time
}

func newAccountLocks(idle time.Duration) *accountLocks {
	return &accountLocks{idle: idle, entries: make(map[int64]*lockEntry), lastPrune: time.Now()}
}

// lock acquires the account mutex and returns its release / Prend le verrou du compte
func (l *accountLocks) lock(userID int64) (unlock func()) {
	l.mu.Lock()
	now := time.Now()
	if now.Sub(l.lastPrune) > l.idle {
		for id, e := range l.entries {
			if e.holders == 0 && now.Sub(e.lastUsed) > l.idle {
				delete(l.entries, id)
			}
		}
		l.lastPrune = now
	}
	e, ok := l.entries[userID]
	if !ok {
		e = &lockEntry{mu: &sync.Mutex{}}
		l.entries[userID] = e
	}
	e.lastUsed = now
	e.holders++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.holders--
		l.mu.Unlock()
	}
}

// size reports the tracked accounts / Nombre de comptes suivis
func (l *accountLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
