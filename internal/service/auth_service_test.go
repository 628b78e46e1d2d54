package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BakiChantier/chantier-direct-sub000/internal/config"
	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/mocks"
	"github.com/BakiChantier/chantier-direct-sub000/internal/repository"
	"github.com/BakiChantier/chantier-direct-sub000/internal/service/auth"

	"golang.org/x/crypto/bcrypt"
)

// authContains checks if a substring is in a string (local to avoid conflicts)
func authContains(s, substr string) bool {
	return strings.Contains(s, substr)
}

// setupTestDB opens a migrated in-memory database
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := repository.OpenSQLiteMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	return db
}

// createTestUser inserts a subcontractor with the given password
func createTestUser(t *testing.T, repos repository.Repositories, email, password string) *domain.User {
	t.Helper()
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user, err := repos.Users.Create(context.Background(), email, string(hashedPassword),
		domain.RoleSousTraitant, domain.Profile{CompanyName: "Test BTP"})
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func TestAuthService_ValidateCredentials(t *testing.T) {
	tests := []struct {
		name          string
		email         string
		password      string
		setupMock     func(*mocks.MockUserRepository)
		expectError   bool
		errorContains string
	}{
		{
			name:     "Valid credentials",
			email:    "test@example.com",
			password: "password123",
			setupMock: func(m *mocks.MockUserRepository) {
				hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
				m.Users[1] = &domain.User{
					ID:            1,
					Email:         "test@example.com",
					Password:      string(hashedPassword),
					EmailVerified: true,
				}
			},
			expectError: false,
		},
		{
			name:     "Invalid password",
			email:    "test@example.com",
			password: "wrongpassword",
			setupMock: func(m *mocks.MockUserRepository) {
				hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
				m.Users[1] = &domain.User{
					ID:       1,
					Email:    "test@example.com",
					Password: string(hashedPassword),
				}
			},
			expectError:   true,
			errorContains: "invalid credentials",
		},
		{
			name:          "Non-existent user",
			email:         "notfound@example.com",
			password:      "password123",
			setupMock:     func(m *mocks.MockUserRepository) {},
			expectError:   true,
			errorContains: "invalid credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := mocks.NewMockUserRepository()
			mockRefreshStore := mocks.NewMockRefreshTokenStore()
			mockMetrics := mocks.NewMockMetrics()
			tt.setupMock(mockRepo)

			db := setupTestDB(t)
			defer db.Close()

			conf := &config.Config{}
			svc := NewAuthService(mockRepo, mockRefreshStore, conf, db, mockMetrics)

			user, err := svc.ValidateCredentials(context.Background(), tt.email, tt.password)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorContains != "" && !authContains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error containing '%s', got '%s'", tt.errorContains, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if user == nil {
					t.Error("Expected user to be returned")
				} else if user.Email != tt.email {
					t.Errorf("Expected email '%s', got '%s'", tt.email, user.Email)
				}
			}
		})
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repos := repository.NewSQLiteRepositories(db)
	userRepo, refreshStore := repos.Users, repos.RefreshTokens
	mockMetrics := mocks.NewMockMetrics()

	user := createTestUser(t, repos, "test@example.com", "password123")

	// Mark email as verified
	if _, err := db.Exec("UPDATE users SET email_verified = 1 WHERE id = ?", user.ID); err != nil {
		t.Fatalf("Failed to verify user: %v", err)
	}

	conf := &config.Config{
		Security: config.SecurityConfig{
			MaxFailedAttempts: 3,
			LockoutDuration:   15 * time.Minute,
		},
		Auth: config.AuthConfig{
			JWTSecret:            "test-secret-key-for-testing-purposes-only",
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 30 * 24 * time.Hour,
		},
	}

	svc := NewAuthService(userRepo, refreshStore, conf, db, mockMetrics)

	returnedUser, tokenPair, err := svc.Login(context.Background(), "test@example.com", "password123", "ip-hash", "ua-hash")

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if returnedUser == nil {
		t.Fatal("Expected user to be returned")
	}

	if tokenPair == nil {
		t.Fatal("Expected token pair to be returned")
	}

	if tokenPair.AccessToken == "" {
		t.Error("Expected access token to be generated")
	}

	if tokenPair.RefreshToken == "" {
		t.Error("Expected refresh token to be generated")
	}
}

func TestAuthService_Login_UnverifiedEmail(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repos := repository.NewSQLiteRepositories(db)
	userRepo, refreshStore := repos.Users, repos.RefreshTokens
	mockMetrics := mocks.NewMockMetrics()

	createTestUser(t, repos, "test@example.com", "password123")

	conf := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:           "test-secret-key-for-testing-purposes-only",
			AccessTokenDuration: 15 * time.Minute,
		},
	}

	svc := NewAuthService(userRepo, refreshStore, conf, db, mockMetrics)

	_, _, err := svc.Login(context.Background(), "test@example.com", "password123", "ip-hash", "ua-hash")

	if err == nil {
		t.Fatal("Expected error for unverified email")
	}

	// Just check that we got an error related to verification
	errMsg := err.Error()
	if errMsg != "email not verified" && !strings.Contains(errMsg, "verif") {
		t.Errorf("Expected error about email verification, got: %v", err)
	}
}

func TestAuthService_Login_InvalidCredentials(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repos := repository.NewSQLiteRepositories(db)
	userRepo, refreshStore := repos.Users, repos.RefreshTokens
	mockMetrics := mocks.NewMockMetrics()

	user := createTestUser(t, repos, "test@example.com", "password123")

	// Mark email as verified
	if _, err := db.Exec("UPDATE users SET email_verified = 1 WHERE id = ?", user.ID); err != nil {
		t.Fatalf("Failed to verify user: %v", err)
	}

	conf := &config.Config{
		Security: config.SecurityConfig{
			MaxFailedAttempts: 3,
			LockoutDuration:   15 * time.Minute,
		},
		Auth: config.AuthConfig{
			JWTSecret:            "test-secret-key-for-testing-purposes-only",
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 30 * 24 * time.Hour,
		},
	}

	svc := NewAuthService(userRepo, refreshStore, conf, db, mockMetrics)

	// Test invalid password
	_, _, err := svc.Login(context.Background(), "test@example.com", "wrongpassword", "ip-hash", "ua-hash")

	if err == nil {
		t.Fatal("Expected error for invalid password")
	}

	if !authContains(err.Error(), "invalid credentials") {
		t.Errorf("Expected invalid credentials error, got: %v", err)
	}

	// Verify failed attempt was incremented
	updatedUser, _ := userRepo.GetByEmail(context.Background(), "test@example.com")
	if updatedUser.FailedLoginAttempts != 1 {
		t.Errorf("Expected 1 failed attempt, got %d", updatedUser.FailedLoginAttempts)
	}
}

// TestAuthService_RefreshToken_Success tests successful token refresh with proper IP/UA binding
func TestAuthService_RefreshToken_Success(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repos := repository.NewSQLiteRepositories(db)
	userRepo, refreshStore := repos.Users, repos.RefreshTokens
	mockMetrics := mocks.NewMockMetrics()

	user := createTestUser(t, repos, "test@example.com", "password123")

	// Mark email as verified
	if _, err := db.Exec("UPDATE users SET email_verified = 1 WHERE id = ?", user.ID); err != nil {
		t.Fatalf("Failed to verify user: %v", err)
	}

	// Create a valid refresh token with IP/UA binding
	validToken := &domain.RefreshToken{
		Token:     "valid-token-12345",
		UserID:    user.ID,
		IssueAt:   time.Now(),
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour), // Valid for 30 days
		IsRevoked: false,
		IPHash:    "test-ip-hash",
		UAHash:    "test-ua-hash",
	}
	if err := refreshStore.Save(context.Background(), validToken); err != nil {
		t.Fatalf("Failed to save valid token: %v", err)
	}

	conf := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:            "test-secret-key-for-testing-purposes-only",
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 30 * 24 * time.Hour,
		},
	}

	svc := NewAuthService(userRepo, refreshStore, conf, db, mockMetrics)

	// Refresh token with matching IP/UA hashes
	tokenPair, err := svc.RefreshToken(context.Background(), "valid-token-12345", "test-ip-hash", "test-ua-hash")

	if err != nil {
		t.Fatalf("Expected successful token refresh, got error: %v", err)
	}

	if tokenPair == nil {
		t.Fatal("Expected token pair, got nil")
	}

	if tokenPair.AccessToken == "" {
		t.Error("Expected access token to be set")
	}

	if tokenPair.RefreshToken == "" {
		t.Error("Expected new refresh token to be set")
	}

	// Verify old token was revoked (should fail to refresh again)
	_, err = svc.RefreshToken(context.Background(), "valid-token-12345", "test-ip-hash", "test-ua-hash")
	if err == nil {
		t.Error("Expected error when reusing old refresh token, but got none")
	}
}

func TestAuthService_RefreshToken_Expired(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repos := repository.NewSQLiteRepositories(db)
	userRepo, refreshStore := repos.Users, repos.RefreshTokens
	mockMetrics := mocks.NewMockMetrics()

	user := createTestUser(t, repos, "test@example.com", "password123")

	// Create an expired token
	expiredToken := &domain.RefreshToken{
		Token:     "expired-token",
		UserID:    user.ID,
		IssueAt:   time.Now().Add(-31 * 24 * time.Hour),
		ExpiresAt: time.Now().Add(-24 * time.Hour), // Expired yesterday
		IsRevoked: false,
		IPHash:    "ip-hash",
		UAHash:    "ua-hash",
	}
	if err := refreshStore.Save(context.Background(), expiredToken); err != nil {
		t.Fatalf("Failed to save expired token: %v", err)
	}

	conf := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:           "test-secret-key-for-testing-purposes-only",
			AccessTokenDuration: 15 * time.Minute,
		},
	}

	svc := NewAuthService(userRepo, refreshStore, conf, db, mockMetrics)

	_, err := svc.RefreshToken(context.Background(), "expired-token", "ip-hash", "ua-hash")

	if err == nil {
		t.Fatal("Expected error for expired token")
	}

	if !authContains(err.Error(), "invalid") && !authContains(err.Error(), "expired") {
		t.Errorf("Expected error about invalid/expired token, got: %v", err)
	}
}

// TestAuthService_RefreshToken_BindingFailure tests that token refresh fails when IP or UA doesn't match
func TestAuthService_RefreshToken_BindingFailure(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repos := repository.NewSQLiteRepositories(db)
	userRepo, refreshStore := repos.Users, repos.RefreshTokens
	mockMetrics := mocks.NewMockMetrics()

	user := createTestUser(t, repos, "test@example.com", "password123")

	// Mark email as verified
	if _, err := db.Exec("UPDATE users SET email_verified = 1 WHERE id = ?", user.ID); err != nil {
		t.Fatalf("Failed to verify user: %v", err)
	}

	// Create a valid refresh token with specific IP/UA binding
	validToken := &domain.RefreshToken{
		Token:     "token-with-binding",
		UserID:    user.ID,
		IssueAt:   time.Now(),
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
		IsRevoked: false,
		IPHash:    "original-ip-hash",
		UAHash:    "original-ua-hash",
	}
	if err := refreshStore.Save(context.Background(), validToken); err != nil {
		t.Fatalf("Failed to save token: %v", err)
	}

	conf := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:            "test-secret-key-for-testing-purposes-only",
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 30 * 24 * time.Hour,
		},
	}

	svc := NewAuthService(userRepo, refreshStore, conf, db, mockMetrics)

	// Test with different IP hash (should fail)
	_, err := svc.RefreshToken(context.Background(), "token-with-binding", "different-ip-hash", "original-ua-hash")
	if err == nil {
		t.Error("Expected error when IP hash doesn't match")
	}
	if err != nil && !authContains(err.Error(), "binding") {
		t.Errorf("Expected binding validation error, got: %v", err)
	}

	// Test with different UA hash (should fail)
	_, err = svc.RefreshToken(context.Background(), "token-with-binding", "original-ip-hash", "different-ua-hash")
	if err == nil {
		t.Error("Expected error when UA hash doesn't match")
	}
	if err != nil && !authContains(err.Error(), "binding") {
		t.Errorf("Expected binding validation error, got: %v", err)
	}

	// Test with both different (should fail)
	_, err = svc.RefreshToken(context.Background(), "token-with-binding", "different-ip", "different-ua")
	if err == nil {
		t.Error("Expected error when both IP and UA hashes don't match")
	}
	if err != nil && !authContains(err.Error(), "binding") {
		t.Errorf("Expected binding validation error, got: %v", err)
	}
}


func TestAuthService_Login_LocksAccount(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repos := repository.NewSQLiteRepositories(db)
	user := createTestUser(t, repos, "lock@example.com", "password123")
	if _, err := db.Exec("UPDATE users SET email_verified = 1 WHERE id = ?", user.ID); err != nil {
		t.Fatalf("Failed to verify user: %v", err)
	}

	conf := &config.Config{
		Security: config.SecurityConfig{
			MaxFailedAttempts: 2,
			LockoutDuration:   15 * time.Minute,
		},
		Auth: config.AuthConfig{
			JWTSecret:            "test-secret-key-for-testing-purposes-only",
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: time.Hour,
		},
	}
	mockMetrics := mocks.NewMockMetrics()
	svc := NewAuthService(repos.Users, repos.RefreshTokens, conf, db, mockMetrics)
	ctx := context.Background()

	if _, _, err := svc.Login(ctx, "lock@example.com", "bad", "ip", "ua"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("first attempt: expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "lock@example.com", "bad", "ip", "ua"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("second attempt: expected ErrAccountLocked, got %v", err)
	}
	// Correct password is refused while locked
	if _, _, err := svc.Login(ctx, "lock@example.com", "password123", "ip", "ua"); !errors.Is(err, ErrAccountLocked) {
		t.Errorf("locked account: expected ErrAccountLocked, got %v", err)
	}
	if mockMetrics.AccountLockoutCalls != 2 {
		t.Errorf("Expected 2 lockout metrics, got %d", mockMetrics.AccountLockoutCalls)
	}
}

func TestAuthService_RevokeAllTokens(t *testing.T) {
	mockRepo := mocks.NewMockUserRepository()
	store := mocks.NewMockRefreshTokenStore()
	store.Tokens["a"] = &domain.RefreshToken{Token: "a", UserID: 7, ExpiresAt: time.Now().Add(time.Hour)}
	store.Tokens["b"] = &domain.RefreshToken{Token: "b", UserID: 8, ExpiresAt: time.Now().Add(time.Hour)}

	db := setupTestDB(t)
	defer db.Close()
	svc := NewAuthService(mockRepo, store, &config.Config{}, db, mocks.NewMockMetrics())

	if err := svc.RevokeAllTokens(context.Background(), 7); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !store.Tokens["a"].IsRevoked {
		t.Error("Expected token of user 7 to be revoked")
	}
	if store.Tokens["b"].IsRevoked {
		t.Error("Token of another user must stay valid")
	}

	store.RevokeAllError = errors.New("db down")
	if err := svc.RevokeAllTokens(context.Background(), 7); !errors.Is(err, ErrInternal) {
		t.Errorf("Expected ErrInternal, got %v", err)
	}
}

func TestAuthService_LoginCarriesRole(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repos := repository.NewSQLiteRepositories(db)
	ctx := context.Background()

	conf := &config.Config{
		Security: config.SecurityConfig{MaxFailedAttempts: 5, LockoutDuration: time.Minute},
		Auth: config.AuthConfig{
			JWTSecret:            "test-secret-key-for-testing-purposes-only",
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: time.Hour,
		},
	}
	mockMetrics := mocks.NewMockMetrics()
	svc := NewAuthService(repos.Users, repos.RefreshTokens, conf, db, mockMetrics)

	accounts := []struct {
		email   string
		role    domain.UserRole
		company string
	}{
		{"maitre@chantier.test", domain.RoleDonneurOrdre, "Maître BTP"},
		{"couvreur@chantier.test", domain.RoleSousTraitant, "Toits du Rhône"},
		{"moderation@chantier.test", domain.RoleModerator, ""},
	}
	for _, a := range accounts {
		t.Run(string(a.role), func(t *testing.T) {
			hash, _ := bcrypt.GenerateFromPassword([]byte("Chantier2026!"), bcrypt.MinCost)
			u, err := repos.Users.Create(ctx, a.email, string(hash), a.role, domain.Profile{CompanyName: a.company})
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if _, err := db.Exec("UPDATE users SET email_verified = 1 WHERE id = ?", u.ID); err != nil {
				t.Fatalf("Failed to verify user: %v", err)
			}

			// Emails are matched case-insensitively / Les emails sont comparés sans casse
			_, pair, err := svc.Login(ctx, "  "+strings.ToUpper(a.email)+" ", "Chantier2026!", "ip", "ua")
			if err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			claims, err := auth.ValidateJWT(pair.AccessToken, conf.Auth.JWTSecret)
			if err != nil {
				t.Fatalf("ValidateAccessToken() error = %v", err)
			}
			if id, _ := claims.UserID(); claims.Role != string(a.role) || id != u.ID {
				t.Errorf("claims = %s/%d, want %s/%d", claims.Role, id, a.role, u.ID)
			}
		})
	}

	for _, a := range accounts {
		if got := mockMetrics.Sessions[string(a.role)]; got != 1 {
			t.Errorf("Sessions[%s] = %d, want 1", a.role, got)
		}
	}
}

func TestAuthService_RefreshPicksUpRoleChange(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repos := repository.NewSQLiteRepositories(db)
	ctx := context.Background()

	user := createTestUser(t, repos, "promu@chantier.test", "password123")
	if _, err := db.Exec("UPDATE users SET email_verified = 1 WHERE id = ?", user.ID); err != nil {
		t.Fatalf("Failed to verify user: %v", err)
	}
	conf := &config.Config{
		Security: config.SecurityConfig{MaxFailedAttempts: 5, LockoutDuration: time.Minute},
		Auth: config.AuthConfig{
			JWTSecret:            "test-secret-key-for-testing-purposes-only",
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: time.Hour,
		},
	}
	svc := NewAuthService(repos.Users, repos.RefreshTokens, conf, db, mocks.NewMockMetrics())

	_, pair, err := svc.Login(ctx, "promu@chantier.test", "password123", "ip", "ua")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := repos.Users.UpdateRole(ctx, user.ID, domain.RoleModerator); err != nil {
		t.Fatalf("UpdateRole() error = %v", err)
	}

	rotated, err := svc.RefreshToken(ctx, pair.RefreshToken, "ip", "ua")
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}
	claims, err := auth.ValidateJWT(rotated.AccessToken, conf.Auth.JWTSecret)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}
	if claims.Role != string(domain.RoleModerator) {
		t.Errorf("Role after refresh = %s, want moderator", claims.Role)
	}
}

func TestAccountLocks(t *testing.T) {
	locks := newAccountLocks(time.Millisecond)

	unlock := locks.lock(1)
	done := make(chan struct{})
	go func() {
		release := locks.lock(1)
		release()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second lock on the same account must wait")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-done

	locks.lock(2)() // acquire and release
	time.Sleep(5 * time.Millisecond)
	locks.lock(3)()
	if n := locks.size(); n != 1 {
		t.Errorf("size() = %d, want 1 after idle entries are pruned", n)
	}
}
