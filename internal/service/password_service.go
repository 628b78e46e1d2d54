package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BakiChantier/chantier-direct-sub000/internal/config"
	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// resetTTL bounds the life of a reset link / Durée de validité d'un lien de réinitialisation
	resetTTL = time.Hour
	// unknownDelay evens the answer time for unknown emails / Égalise le temps de réponse
	unknownDelay = 200 * time.Millisecond
)

// PasswordService handles password reset and change for members / Gère le mot de passe des membres
type PasswordService struct {
	users    ports.UserReader
	resets   ports.PasswordResetRepository
	sessions ports.RefreshTokenStore
	notifier *Notifier
	conf     *config.Config
}

// NewPasswordService creates a new password management service instance / Crée le service de mot de passe
func NewPasswordService(
	repo ports.UserRepository,
	sessions ports.RefreshTokenStore,
	notifier *Notifier,
	conf *config.Config,
) *PasswordService {
	return &PasswordService{
		users:    repo,
		resets:   repo,
		sessions: sessions,
		notifier: notifier,
		conf:     conf,
	}
}

// RequestPasswordReset mails a reset link when the account exists / Envoie un lien si le compte existe
// The answer never tells whether the email is known. A link still valid
// is not replaced.
func (s *PasswordService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !isValidEmail(email) {
		time.Sleep(unknownDelay)
		return nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		time.Sleep(unknownDelay)
		return nil
	}
	if user.PasswordResetToken.Valid && user.PasswordResetExpiresAt.Valid && time.Now().Before(user.PasswordResetExpiresAt.Time) {
		return nil
	}

	token := uuid.New().String()
	if err := s.resets.SetPasswordResetToken(ctx, user.Email, token, time.Now().Add(resetTTL)); err != nil {
		slog.Error("failed to set password reset token", "user_id", user.ID, "err", err)
		return nil
	}

	s.notifier.Notify(MailPasswordReset, []string{user.Email}, MailData{
		"Email":    user.Email,
		"ResetURL": s.notifier.Link(fmt.Sprintf("reset-password?token=%s", token)),
	})
	slog.Info("password reset requested", "user_id", user.ID, "role", user.Role)
	return nil
}

// ResetPassword sets a new password from a reset link / Définit un nouveau mot de passe depuis un lien
// The link works once and every session of the account is closed.
func (s *PasswordService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return invalid("token", "reset token is required")
	}
	if !isStrongPassword(newPassword) {
		return invalid("password", passwordPolicy)
	}

	user, err := s.resets.GetByPasswordResetToken(ctx, token)
	if err != nil {
		return ErrInvalidToken
	}
	if err := s.replace(ctx, user, newPassword); err != nil {
		return err
	}
	if err := s.resets.ClearPasswordResetToken(ctx, user.ID); err != nil {
		slog.Error("failed to clear password reset token", "user_id", user.ID, "err", err)
	}

	slog.Info("password reset", "user_id", user.ID, "role", user.Role)
	return nil
}

// ChangePassword replaces the password after checking the current one / Change le mot de passe après vérification
func (s *PasswordService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(currentPassword)); err != nil {
		return ErrWrongPassword
	}
	if !isStrongPassword(newPassword) {
		return invalid("new_password", passwordPolicy)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(newPassword)); err == nil {
		return invalid("new_password", "must be different from current password")
	}

	if err := s.replace(ctx, user, newPassword); err != nil {
		return err
	}
	slog.Info("password changed", "user_id", user.ID, "role", user.Role)
	return nil
}

// replace stores the hash of password and closes the account sessions
// Stocke le nouveau hash et ferme les sessions du compte
func (s *PasswordService) replace(ctx context.Context, user *domain.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.conf.Security.BcryptCost)
	if err != nil {
		slog.Error("failed to hash password", "user_id", user.ID, "err", err)
		return ErrInternal
	}
	if err := s.resets.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		slog.Error("failed to update password", "user_id", user.ID, "err", err)
		return ErrInternal
	}
	if err := s.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
		slog.Error("failed to revoke sessions after password update", "user_id", user.ID, "err", err)
	}
	return nil
}
