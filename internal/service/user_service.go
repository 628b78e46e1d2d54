package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BakiChantier/chantier-direct-sub000/internal/config"
	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
	"github.com/BakiChantier/chantier-direct-sub000/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserService handles user management operations / Gère les opérations de gestion des utilisateurs
type UserService struct {
	reader       ports.UserReader
	writer       ports.UserWriter
	roleRepo     ports.RoleRepository
	verification ports.EmailVerificationRepository
	refreshStore ports.RefreshTokenStore
	conf         *config.Config
	metrics      UserMetricsRecorder
}

// UserMetricsRecorder records user metrics / Enregistre les métriques utilisateur
type UserMetricsRecorder interface {
	RecordRegistration(role string)
}

// RegisterInput is a sign-up request / Demande d'inscription
type RegisterInput struct {
	Email    string
	Password string
	Role     domain.UserRole
	Profile  domain.Profile
}

// NewUserService creates user management service instance / Crée une instance de service de gestion utilisateur
func NewUserService(
	repo ports.UserRepository,
	refreshStore ports.RefreshTokenStore,
	conf *config.Config,
	metrics UserMetricsRecorder,
) *UserService {
	return &UserService{
		reader:       repo,
		writer:       repo,
		roleRepo:     repo,
		verification: repo,
		refreshStore: refreshStore,
		conf:         conf,
		metrics:      metrics,
	}
}

// Register creates a new member account / Crée un nouveau compte membre
// Only donneur_ordre and sous_traitant can be chosen here.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if !in.Role.IsSelfService() {
		return nil, invalid("role", "must be donneur_ordre or sous_traitant")
	}
	user, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordRegistration(string(user.Role))
	}
	return user, nil
}

// CreateVerified creates an account of any role with a confirmed email / Crée un compte déjà vérifié
// Used by the create-admin command.
func (s *UserService) CreateVerified(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if !in.Role.IsValid() {
		return nil, invalid("role", "unknown role")
	}
	user, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}

	token := uuid.New().String()
	if err := s.verification.UpdateDBSendEmail(ctx, token, time.Now().Add(time.Hour), user.ID); err != nil {
		slog.Error("failed to set verification token", "user_id", user.ID, "err", err)
		return nil, ErrInternal
	}
	if err := s.verification.UpdateDBVerify(ctx, token); err != nil {
		slog.Error("failed to verify created account", "user_id", user.ID, "err", err)
		return nil, ErrInternal
	}
	user.EmailVerified = true
	return user, nil
}

func (s *UserService) create(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Profile = normalizeProfile(in.Profile)

	problems := fieldErrors{}
	if !isValidEmail(in.Email) {
		problems.add("email", "invalid email format")
	}
	if !isStrongPassword(in.Password) {
		problems.add("password", passwordPolicy)
	}
	validateProfile(in.Role, in.Profile, problems)
	if err := problems.err(); err != nil {
		return nil, err
	}

	// Hash password using bcrypt
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.conf.Security.BcryptCost)
	if err != nil {
		slog.Error("failed to hash password during registration", "err", err)
		return nil, ErrInternal
	}

	createdUser, err := s.writer.Create(ctx, in.Email, string(hashedPassword), in.Role, in.Profile)
	if err != nil {
		// Check for duplicate email using typed error / Vérifie l'email dupliqué avec erreur typée
		if errors.Is(err, repository.ErrDup) {
			return nil, ErrEmailTaken
		}
		slog.Error("failed to create user", "err", err)
		return nil, ErrInternal
	}

	return createdUser, nil
}

// GetUser retrieves a user by their ID / Récupère un utilisateur par son ID
func (s *UserService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.reader.GetByID(ctx, id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile replaces the company profile of a user / Met à jour le profil entreprise
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, profile domain.Profile) (*domain.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile = normalizeProfile(profile)
	problems := fieldErrors{}
	validateProfile(user.Role, profile, problems)
	if err := problems.err(); err != nil {
		return nil, err
	}

	if err := s.writer.UpdateProfile(ctx, userID, profile); err != nil {
		if errors.Is(err, repository.ErrNoRecord) {
			return nil, ErrUserNotFound
		}
		slog.Error("failed to update profile", "user_id", userID, "err", err)
		return nil, ErrInternal
	}
	return s.GetUser(ctx, userID)
}

// ListUsers retrieves paginated users / Récupère les utilisateurs paginés
func (s *UserService) ListUsers(ctx context.Context, offset, limit int) ([]*domain.User, int, error) {
	users, totalCount, err := s.reader.List(ctx, offset, limit)
	if err != nil {
		slog.Error("failed to list users", "err", err, "offset", offset, "limit", limit)
		return nil, 0, ErrInternal
	}
	return users, totalCount, nil
}

// DeleteUser permanently removes a user / Supprime définitivement un utilisateur
// Projects, offers, documents and messages of the user are removed with it.
func (s *UserService) DeleteUser(ctx context.Context, userID int64) error {
	// Check if user exists
	_, err := s.reader.GetByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}

	// Revoke all refresh tokens before deletion
	if err := s.refreshStore.RevokeAllForUser(ctx, userID); err != nil {
		slog.Error("failed to revoke tokens during user deletion", "user_id", userID, "err", err)
		// Continue with deletion even if token revocation fails
	}

	// Delete user from database
	if err := s.writer.Delete(ctx, userID); err != nil {
		slog.Error("failed to delete user", "user_id", userID, "err", err)
		return ErrInternal
	}

	return nil
}

// UpdateUserRole changes a user's role / Change le rôle d'un utilisateur
func (s *UserService) UpdateUserRole(ctx context.Context, userID int64, newRole domain.UserRole) error {
	// Validate role
	if !newRole.IsValid() {
		return invalid("role", "unknown role")
	}

	// Check if user exists
	_, err := s.reader.GetByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}

	// Update role in database
	if err := s.roleRepo.UpdateRole(ctx, userID, newRole); err != nil {
		slog.Error("failed to update user role", "user_id", userID, "new_role", newRole, "err", err)
		return ErrInternal
	}

	// Tokens carry the role claim / Les tokens portent le rôle
	if err := s.refreshStore.RevokeAllForUser(ctx, userID); err != nil {
		slog.Error("failed to revoke tokens after role change", "user_id", userID, "err", err)
	}

	return nil
}
