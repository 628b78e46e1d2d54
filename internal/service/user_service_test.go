package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BakiChantier/chantier-direct-sub000/internal/config"
	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/mocks"
	"github.com/BakiChantier/chantier-direct-sub000/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}

func testUserConfig() *config.Config {
	return &config.Config{
		Security: config.SecurityConfig{
			BcryptCost: bcrypt.MinCost, // Use minimum cost for faster tests
		},
	}
}

func TestUserService_Register(t *testing.T) {
	profile := domain.Profile{CompanyName: "Maçonnerie Dubois", Siret: "732 829 320 00074"}

	tests := []struct {
		name          string
		email         string
		password      string
		role          domain.UserRole
		profile       domain.Profile
		setupMock     func(*mocks.MockUserRepository)
		expectError   error
		errorContains string
	}{
		{
			name:      "Valid subcontractor registration",
			email:     "Test@Example.com",
			password:  "ValidP@ss123",
			role:      domain.RoleSousTraitant,
			profile:   profile,
			setupMock: func(m *mocks.MockUserRepository) {},
		},
		{
			name:      "Valid owner registration",
			email:     "owner@example.com",
			password:  "ValidP@ss123",
			role:      domain.RoleDonneurOrdre,
			profile:   profile,
			setupMock: func(m *mocks.MockUserRepository) {},
		},
		{
			name:          "Invalid email format",
			email:         "invalid-email",
			password:      "ValidP@ss123",
			role:          domain.RoleSousTraitant,
			profile:       profile,
			setupMock:     func(m *mocks.MockUserRepository) {},
			expectError:   ErrValidation,
			errorContains: "email",
		},
		{
			name:          "Weak password - too short",
			email:         "test@example.com",
			password:      "Weak1!",
			role:          domain.RoleSousTraitant,
			profile:       profile,
			setupMock:     func(m *mocks.MockUserRepository) {},
			expectError:   ErrValidation,
			errorContains: "password",
		},
		{
			name:          "Weak password - no special char",
			email:         "test@example.com",
			password:      "WeakPass123",
			role:          domain.RoleSousTraitant,
			profile:       profile,
			setupMock:     func(m *mocks.MockUserRepository) {},
			expectError:   ErrValidation,
			errorContains: "password",
		},
		{
			name:          "Company name required",
			email:         "test@example.com",
			password:      "ValidP@ss123",
			role:          domain.RoleSousTraitant,
			setupMock:     func(m *mocks.MockUserRepository) {},
			expectError:   ErrValidation,
			errorContains: "company_name",
		},
		{
			name:          "Staff role cannot be self-assigned",
			email:         "test@example.com",
			password:      "ValidP@ss123",
			role:          domain.RoleAdmin,
			profile:       profile,
			setupMock:     func(m *mocks.MockUserRepository) {},
			expectError:   ErrValidation,
			errorContains: "role",
		},
		{
			name:     "Email already exists",
			email:    "existing@example.com",
			password: "ValidP@ss123",
			role:     domain.RoleSousTraitant,
			profile:  profile,
			setupMock: func(m *mocks.MockUserRepository) {
				// Use the standard repository error that the service checks for
				m.CreateError = repository.ErrDup
			},
			expectError: ErrEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := mocks.NewMockUserRepository()
			mockRefreshStore := mocks.NewMockRefreshTokenStore()
			mockMetrics := mocks.NewMockMetrics()
			tt.setupMock(mockRepo)

			svc := NewUserService(mockRepo, mockRefreshStore, testUserConfig(), mockMetrics)
			user, err := svc.Register(context.Background(), RegisterInput{
				Email: tt.email, Password: tt.password, Role: tt.role, Profile: tt.profile,
			})

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("Expected %v, got %v", tt.expectError, err)
				} else if tt.errorContains != "" && !contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error containing '%s', got '%s'", tt.errorContains, err.Error())
				}
				if mockMetrics.RegistrationCalls != 0 {
					t.Error("Failed registration must not be counted")
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if user.Email != strings.ToLower(tt.email) {
				t.Errorf("Expected email '%s', got '%s'", strings.ToLower(tt.email), user.Email)
			}
			if user.Role != tt.role {
				t.Errorf("Expected role '%s', got '%s'", tt.role, user.Role)
			}
			if user.Profile.Siret != "73282932000074" {
				t.Errorf("Expected normalized siret, got '%s'", user.Profile.Siret)
			}
			// Verify password was hashed
			if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(tt.password)); err != nil {
				t.Error("Password was not properly hashed")
			}
			if mockMetrics.Registrations[string(tt.role)] != 1 {
				t.Errorf("Expected registration metric for %s", tt.role)
			}
		})
	}
}

func TestUserService_CreateVerified(t *testing.T) {
	mockRepo := mocks.NewMockUserRepository()
	svc := NewUserService(mockRepo, mocks.NewMockRefreshTokenStore(), testUserConfig(), nil)

	user, err := svc.CreateVerified(context.Background(), RegisterInput{
		Email:    "admin@chantier-direct.fr",
		Password: "ValidP@ss123",
		Role:     domain.RoleAdmin,
		Profile:  domain.Profile{CompanyName: "Chantier Direct"},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !user.EmailVerified || !mockRepo.Users[user.ID].EmailVerified {
		t.Error("Expected created account to be verified")
	}
	if user.Role != domain.RoleAdmin {
		t.Errorf("Expected admin role, got %s", user.Role)
	}

	_, err = svc.CreateVerified(context.Background(), RegisterInput{
		Email: "x@example.com", Password: "ValidP@ss123", Role: "root", Profile: domain.Profile{CompanyName: "X"},
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for unknown role, got %v", err)
	}

	moderator, err := svc.CreateVerified(context.Background(), RegisterInput{
		Email: "moderation@chantier-direct.fr", Password: "ValidP@ss123", Role: domain.RoleModerator,
	})
	if err != nil {
		t.Fatalf("Staff account without company: unexpected error %v", err)
	}
	if moderator.Profile.CompanyName != "" {
		t.Errorf("Expected empty company, got %q", moderator.Profile.CompanyName)
	}

	_, err = svc.CreateVerified(context.Background(), RegisterInput{
		Email: "owner@example.com", Password: "ValidP@ss123", Role: domain.RoleDonneurOrdre,
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for member without company, got %v", err)
	}
}

func TestUserService_GetUser(t *testing.T) {
	tests := []struct {
		name        string
		userID      int64
		setupMock   func(*mocks.MockUserRepository)
		expectError bool
	}{
		{
			name:   "Get existing user",
			userID: 1,
			setupMock: func(m *mocks.MockUserRepository) {
				m.Users[1] = &domain.User{
					ID:    1,
					Email: "user@example.com",
					Role:  domain.RoleDonneurOrdre,
				}
			},
			expectError: false,
		},
		{
			name:        "Get non-existent user",
			userID:      999,
			setupMock:   func(m *mocks.MockUserRepository) {},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := mocks.NewMockUserRepository()
			mockRefreshStore := mocks.NewMockRefreshTokenStore()
			tt.setupMock(mockRepo)

			svc := NewUserService(mockRepo, mockRefreshStore, &config.Config{}, nil)
			user, err := svc.GetUser(context.Background(), tt.userID)

			if tt.expectError {
				if !errors.Is(err, ErrUserNotFound) {
					t.Errorf("Expected ErrUserNotFound, got %v", err)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if user == nil {
					t.Error("Expected user to be returned")
				}
			}
		})
	}
}

func TestUserService_UpdateProfile(t *testing.T) {
	mockRepo := mocks.NewMockUserRepository()
	mockRepo.Users[1] = &domain.User{ID: 1, Email: "user@example.com", Role: domain.RoleSousTraitant}
	svc := NewUserService(mockRepo, mocks.NewMockRefreshTokenStore(), &config.Config{}, nil)

	user, err := svc.UpdateProfile(context.Background(), 1, domain.Profile{
		CompanyName: " Plomberie Lefèvre ",
		Trades:      "plomberie, chauffage",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if user.Profile.CompanyName != "Plomberie Lefèvre" || user.Profile.Trades != "plomberie,chauffage" {
		t.Errorf("Profile not normalized: %+v", user.Profile)
	}

	if _, err := svc.UpdateProfile(context.Background(), 1, domain.Profile{}); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
	if _, err := svc.UpdateProfile(context.Background(), 42, domain.Profile{CompanyName: "X"}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestUserService_ListUsers(t *testing.T) {
	mockRepo := mocks.NewMockUserRepository()
	mockRefreshStore := mocks.NewMockRefreshTokenStore()

	// Add test users
	mockRepo.Users[1] = &domain.User{ID: 1, Email: "user1@example.com"}
	mockRepo.Users[2] = &domain.User{ID: 2, Email: "user2@example.com"}
	mockRepo.Users[3] = &domain.User{ID: 3, Email: "user3@example.com"}

	svc := NewUserService(mockRepo, mockRefreshStore, &config.Config{}, nil)

	// Test with pagination: get first 10 users
	users, totalCount, err := svc.ListUsers(context.Background(), 0, 10)

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(users) != 3 {
		t.Errorf("Expected 3 users, got %d", len(users))
	}

	if totalCount != 3 {
		t.Errorf("Expected total count 3, got %d", totalCount)
	}

	mockRepo.ListError = mocks.ErrMockDatabase
	if _, _, err := svc.ListUsers(context.Background(), 0, 10); !errors.Is(err, ErrInternal) {
		t.Errorf("Expected ErrInternal, got %v", err)
	}
}

func TestUserService_DeleteUser(t *testing.T) {
	tests := []struct {
		name        string
		userID      int64
		setupMock   func(*mocks.MockUserRepository, *mocks.MockRefreshTokenStore)
		expectError bool
	}{
		{
			name:   "Delete existing user",
			userID: 1,
			setupMock: func(m *mocks.MockUserRepository, r *mocks.MockRefreshTokenStore) {
				m.Users[1] = &domain.User{ID: 1, Email: "user@example.com"}
			},
			expectError: false,
		},
		{
			name:        "Delete non-existent user",
			userID:      999,
			setupMock:   func(m *mocks.MockUserRepository, r *mocks.MockRefreshTokenStore) {},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := mocks.NewMockUserRepository()
			mockRefreshStore := mocks.NewMockRefreshTokenStore()
			tt.setupMock(mockRepo, mockRefreshStore)

			svc := NewUserService(mockRepo, mockRefreshStore, &config.Config{}, nil)
			err := svc.DeleteUser(context.Background(), tt.userID)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				// Verify user was deleted
				if _, exists := mockRepo.Users[tt.userID]; exists {
					t.Error("User was not deleted from repository")
				}
				// Verify tokens were revoked
				if mockRefreshStore.RevokeAllCalls != 1 {
					t.Errorf("Expected RevokeAllForUser to be called once, got %d", mockRefreshStore.RevokeAllCalls)
				}
			}
		})
	}
}

func TestUserService_UpdateUserRole(t *testing.T) {
	tests := []struct {
		name        string
		userID      int64
		newRole     domain.UserRole
		setupMock   func(*mocks.MockUserRepository)
		expectError bool
	}{
		{
			name:    "Update to moderator",
			userID:  1,
			newRole: domain.RoleModerator,
			setupMock: func(m *mocks.MockUserRepository) {
				m.Users[1] = &domain.User{ID: 1, Email: "user@example.com", Role: domain.RoleSousTraitant}
			},
			expectError: false,
		},
		{
			name:    "Update to admin",
			userID:  1,
			newRole: domain.RoleAdmin,
			setupMock: func(m *mocks.MockUserRepository) {
				m.Users[1] = &domain.User{ID: 1, Email: "user@example.com", Role: domain.RoleDonneurOrdre}
			},
			expectError: false,
		},
		{
			name:        "Update non-existent user",
			userID:      999,
			newRole:     domain.RoleAdmin,
			setupMock:   func(m *mocks.MockUserRepository) {},
			expectError: true,
		},
		{
			name:        "Invalid role",
			userID:      1,
			newRole:     domain.UserRole("invalid"),
			setupMock:   func(m *mocks.MockUserRepository) {},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := mocks.NewMockUserRepository()
			mockRefreshStore := mocks.NewMockRefreshTokenStore()
			tt.setupMock(mockRepo)

			svc := NewUserService(mockRepo, mockRefreshStore, &config.Config{}, nil)
			err := svc.UpdateUserRole(context.Background(), tt.userID, tt.newRole)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				// Verify role was updated
				user := mockRepo.Users[tt.userID]
				if user.Role != tt.newRole {
					t.Errorf("Expected role '%s', got '%s'", tt.newRole, user.Role)
				}
				// Role lives in the access token, sessions must be reopened
				if mockRefreshStore.RevokeAllCalls != 1 {
					t.Errorf("Expected tokens to be revoked after role change")
				}
			}
		})
	}
}
