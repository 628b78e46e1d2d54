package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BakiChantier/chantier-direct-sub000/internal/config"
	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
	"github.com/google/uuid"
)

// resendAttempt tracks resend attempts for throttling / Suivi des tentatives de renvoi pour le throttling
type resendAttempt struct {
	count     int       // Number of attempts / Nombre de tentatives
	firstSeen time.Time // First attempt timestamp / Horodatage de la première tentative
	lastSeen  time.Time // Last attempt timestamp / Horodatage de la dernière tentative
}

// VerificationService handles email verification / Gère la vérification des emails
type VerificationService struct {
	verification    ports.EmailVerificationRepository
	userReader      ports.UserReader
	notifier        *Notifier
	conf            *config.Config
	resendThrottle  map[string]*resendAttempt // email -> attempt tracking
	throttleMutex   sync.RWMutex              // Protects resendThrottle map
	cleanupInterval time.Duration             // How often to clean expired entries
}

// NewVerificationService creates a new email verification service instance / Crée le service de vérification
func NewVerificationService(
	repo ports.UserRepository,
	notifier *Notifier,
	conf *config.Config,
) *VerificationService {
	svc := &VerificationService{
		verification:    repo,
		userReader:      repo,
		notifier:        notifier,
		conf:            conf,
		resendThrottle:  make(map[string]*resendAttempt),
		cleanupInterval: 10 * time.Minute, // Clean expired entries every 10 minutes
	}

	// Start background cleanup goroutine
	go svc.cleanupExpiredThrottles()

	return svc
}

// SendVerificationEmail generates a verification token and sends email / Génère un token et envoie l'email de vérification
func (s *VerificationService) SendVerificationEmail(ctx context.Context, user *domain.User) error {
	if user == nil || user.Email == "" {
		return invalid("email", "is required")
	}

	// Generate a unique verification token
	verificationToken := uuid.New().String()
	expiresAt := time.Now().Add(s.conf.EmailVerification.TokenExpiration)

	// Store the token in the database with context / Stocke le token avec propagation du contexte
	if err := s.verification.UpdateDBSendEmail(ctx, verificationToken, expiresAt, user.ID); err != nil {
		slog.Error("failed to set verification token", "email", user.Email, "err", err)
		return fmt.Errorf("failed to generate verification token")
	}

	s.sendVerificationEmail(user.Email, verificationToken)

	return nil
}

// sendVerificationEmail queues the verification email / Met en file l'email de vérification
func (s *VerificationService) sendVerificationEmail(email, token string) {
	s.notifier.Notify(MailVerification, []string{email}, MailData{
		"Email":           email,
		"VerificationURL": fmt.Sprintf("%s/verify?token=%s", s.conf.Server.BaseURL, token),
		"Duration":        formatValidity(s.conf.EmailVerification.TokenExpiration),
	})
}

// ResendVerification resends verification email (timing-safe) / Renvoie l'email de vérification (sécurisé contre l'énumération)
func (s *VerificationService) ResendVerification(ctx context.Context, email string) error {
	// Validate email format
	if !isValidEmail(email) {
		time.Sleep(200 * time.Millisecond)
		return nil
	}

	// Check throttling FIRST to prevent database queries for throttled requests
	// This prevents abuse even if email doesn't exist
	if !s.checkResendThrottle(email) {
		// Still sleep to maintain timing-safe behavior
		time.Sleep(200 * time.Millisecond)
		return nil
	}

	// Try to get user by email with context / Récupère l'utilisateur avec contexte
	user, err := s.userReader.GetByEmail(ctx, email)
	if err != nil {
		time.Sleep(200 * time.Millisecond)
		return nil
	}

	// If already verified, don't send email (but don't reveal this info)
	if user.EmailVerified {
		time.Sleep(200 * time.Millisecond)
		return nil
	}

	// Generate new verification token
	verificationToken := uuid.New().String()
	expiresAt := time.Now().Add(s.conf.EmailVerification.TokenExpiration)

	// Store the new token with context / Stocke le token avec contexte
	if err := s.verification.UpdateDBSendEmail(ctx, verificationToken, expiresAt, user.ID); err != nil {
		slog.Error("failed to set verification token for resend", "email", email, "err", err)
		return nil
	}

	s.sendVerificationEmail(email, verificationToken)

	slog.Info("verification email resend successful", "email", email)

	return nil
}

// VerifyEmail verifies a user's email using token / Vérifie l'email d'un utilisateur via le token
func (s *VerificationService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return invalid("token", "verification token is required")
	}

	// Verify the token and update user's email_verified status with context
	if err := s.verification.UpdateDBVerify(ctx, token); err != nil {
		return ErrInvalidToken
	}

	return nil
}

// checkResendThrottle checks if email resend is allowed for this email address
// Returns true if allowed, false if throttled / Vérifie si le renvoi est autorisé
func (s *VerificationService) checkResendThrottle(email string) bool {
	s.throttleMutex.Lock()
	defer s.throttleMutex.Unlock()

	now := time.Now()
	attempt, exists := s.resendThrottle[email]

	// First request for this email - allow it
	if !exists {
		s.resendThrottle[email] = &resendAttempt{
			count:     1,
			firstSeen: now,
			lastSeen:  now,
		}
		return true
	}

	// Check if cooldown period has passed since first attempt
	cooldownExpired := now.Sub(attempt.firstSeen) >= s.conf.EmailVerification.ResendCooldown

	// If cooldown expired, reset the counter
	if cooldownExpired {
		s.resendThrottle[email] = &resendAttempt{
			count:     1,
			firstSeen: now,
			lastSeen:  now,
		}
		return true
	}

	// Within cooldown period - check if max attempts exceeded
	if attempt.count >= s.conf.EmailVerification.ResendMaxAttempts {
		// Log throttling event
		remainingTime := s.conf.EmailVerification.ResendCooldown - now.Sub(attempt.firstSeen)
		slog.Warn("email verification resend throttled",
			"email", email,
			"attempts", attempt.count,
			"remaining_cooldown", remainingTime.Round(time.Second).String(),
		)
		return false
	}

	// Increment attempt counter and update last seen
	attempt.count++
	attempt.lastSeen = now
	return true
}

// cleanupExpiredThrottles periodically removes expired throttle entries to prevent memory leaks
// Runs in a background goroutine / Nettoie périodiquement les entrées expirées
func (s *VerificationService) cleanupExpiredThrottles() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		s.throttleMutex.Lock()

		now := time.Now()
		expiredEmails := []string{}

		// Find all expired entries
		for email, attempt := range s.resendThrottle {
			if now.Sub(attempt.lastSeen) >= s.conf.EmailVerification.ResendCooldown*2 {
				expiredEmails = append(expiredEmails, email)
			}
		}

		// Remove expired entries
		for _, email := range expiredEmails {
			delete(s.resendThrottle, email)
		}

		s.throttleMutex.Unlock()

		if len(expiredEmails) > 0 {
			slog.Debug("cleaned up expired resend throttle entries",
				"count", len(expiredEmails),
			)
		}
	}
}
