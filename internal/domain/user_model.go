package domain

import (
	"database/sql"
	"time"
)

// UserRole represents user's role for authorization / Représente le rôle utilisateur pour l'autorisation
type UserRole string

const (
	RoleDonneurOrdre UserRole = "donneur_ordre" // Posts construction projects / Publie des chantiers
	RoleSousTraitant UserRole = "sous_traitant" // Bids on projects / Répond aux chantiers
	RoleModerator    UserRole = "moderator"     // Moderates projects and documents / Modère chantiers et documents
	RoleAdmin        UserRole = "admin"         // Full admin access / Accès administrateur complet
)

// IsValid checks if role is valid / Vérifie si le rôle est valide
func (r UserRole) IsValid() bool {
	switch r {
	case RoleDonneurOrdre, RoleSousTraitant, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// IsSelfService reports roles a visitor may pick at registration / Rôles choisis librement à l'inscription
func (r UserRole) IsSelfService() bool {
	return r == RoleDonneurOrdre || r == RoleSousTraitant
}

// IsStaff reports moderation roles, which carry no company / Rôles de modération, sans entreprise
func (r UserRole) IsStaff() bool {
	return r == RoleModerator || r == RoleAdmin
}

// User represents domain user entity / Représente l'entité utilisateur du domaine
type User struct {
	BaseModel
	ID                     int64
	Email                  string
	Password               string // Hashed password / Mot de passe haché
	Role                   UserRole
	Profile                Profile
	Token                  *RefreshToken
	EmailVerified          bool
	VerificationToken      string
	VerificationExpiresAt  time.Time
	FailedLoginAttempts    int        // Failed login counter / Compteur d'échecs de connexion
	LockedUntil            *time.Time // Account lock expiry / Expiration du verrouillage du compte
	PasswordResetToken     sql.NullString
	PasswordResetExpiresAt sql.NullTime
}

// Profile holds the public company card / Fiche entreprise publique
type Profile struct {
	CompanyName string
	Siret       string
	Phone       string
	City        string
	Trades      string // Comma separated corps de métier / Corps de métier séparés par des virgules
	Description string
}

// IsLocked checks if account is locked / Vérifie si le compte est verrouillé
func (u *User) IsLocked() bool {
	if u.LockedUntil == nil {
		return false
	}
	return time.Now().Before(*u.LockedUntil)
}

// HasRole checks exact role match / Vérifie la correspondance exacte du rôle
func (u *User) HasRole(role UserRole) bool {
	return u.Role == role
}

// IsAdmin checks admin privileges / Vérifie les privilèges admin
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsStaff reports moderators and admins / Modérateurs et administrateurs
func (u *User) IsStaff() bool {
	return u.Role.IsStaff()
}

// HasMinimumRole checks role hierarchy (admin > moderator > members) / Vérifie la hiérarchie des rôles
func (u *User) HasMinimumRole(role UserRole) bool {
	roleHierarchy := map[UserRole]int{
		RoleDonneurOrdre: 1,
		RoleSousTraitant: 1,
		RoleModerator:    2,
		RoleAdmin:        3,
	}

	userLevel := roleHierarchy[u.Role]
	requiredLevel := roleHierarchy[role]

	return userLevel >= requiredLevel
}

// RefreshToken represents refresh token entity / Représente l'entité refresh token
type RefreshToken struct {
	Token     string // Hashed token value / Valeur du token hachée
	UserID    int64
	IssueAt   time.Time
	ExpiresAt time.Time
	IsRevoked bool
	IPHash    string // SHA-256 hash of client IP / Hash SHA-256 de l'IP client
	UAHash    string // SHA-256 hash of User-Agent / Hash SHA-256 du User-Agent
}

// IsTokenExpired checks if token expired / Vérifie si le token est expiré
func (rt *RefreshToken) IsTokenExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// IsTokenValid checks if token is valid / Vérifie si le token est valide
func (rt *RefreshToken) IsTokenValid() bool {
	return !rt.IsRevoked && !rt.IsTokenExpired()
}
