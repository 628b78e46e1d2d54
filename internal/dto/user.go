// Package dto defines the JSON shapes of the HTTP API and validates them
// with go-playground/validator before they reach the services.
package dto

import (
	"strings"
	"time"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/service"
)

// RegisterRequest is the sign-up body / Corps de l'inscription
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	Role        string `json:"role" validate:"required,oneof=donneur_ordre sous_traitant"`
	CompanyName string `json:"company_name" validate:"required,max=200"`
	Siret       string `json:"siret" validate:"omitempty,len=14,numeric"`
	Phone       string `json:"phone" validate:"max=30"`
	City        string `json:"city" validate:"max=100"`
	Trades      string `json:"trades" validate:"max=500"`
	Description string `json:"description" validate:"max=2000"`
}

// Input converts the request for UserService.Register / Convertit pour le service
func (r RegisterRequest) Input() service.RegisterInput {
	return service.RegisterInput{
		Email:    r.Email,
		Password: r.Password,
		Role:     domain.UserRole(r.Role),
		Profile: domain.Profile{
			CompanyName: r.CompanyName,
			Siret:       strings.ReplaceAll(r.Siret, " ", ""),
			Phone:       r.Phone,
			City:        r.City,
			Trades:      r.Trades,
			Description: r.Description,
		},
	}
}

// UserDTOReq is DTO for login requests / Est le DTO pour les demandes de connexion
type UserDTOReq struct {
	Username string `json:"email" validate:"required"`    // User email / Email de l'utilisateur
	Password string `json:"password" validate:"required"` // User password / Mot de passe de l'utilisateur
}

// UserLoginDTOResponse is DTO for user login response / Est le DTO pour la réponse de connexion utilisateur
type UserLoginDTOResponse struct {
	ID           int64  `json:"id,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	CompanyName  string `json:"company_name,omitempty"`
	AccessToken  string `json:"access_token,omitempty"` // For bearer clients / Pour les clients bearer
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"` // Unix seconds / Secondes Unix
}

// UserLoginToDTO converts domain.User to UserLoginDTOResponse / Convertit domain.User en UserLoginDTOResponse
func UserLoginToDTO(user *domain.User) *UserLoginDTOResponse {
	return &UserLoginDTOResponse{
		ID:          user.ID,
		Email:       user.Email,
		Role:        string(user.Role),
		CompanyName: user.Profile.CompanyName,
	}
}

// PasswordResetRequestDTO is DTO for password reset request / Est le DTO pour la demande de réinitialisation
type PasswordResetRequestDTO struct {
	Email string `json:"email" validate:"required"`
}

// ResendVerificationDTO asks for a new verification email / Redemande l'email de vérification
type ResendVerificationDTO struct {
	Email string `json:"email" validate:"required"`
}

// PasswordResetDTO is DTO for password reset completion / Est le DTO pour terminer la réinitialisation
type PasswordResetDTO struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// ChangePasswordDTO changes the password of the caller / Change le mot de passe
type ChangePasswordDTO struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// ProfileDTO is the editable company card / Fiche entreprise modifiable
type ProfileDTO struct {
	CompanyName string `json:"company_name" validate:"required,max=200"`
	Siret       string `json:"siret" validate:"omitempty,len=14,numeric"`
	Phone       string `json:"phone" validate:"max=30"`
	City        string `json:"city" validate:"max=100"`
	Trades      string `json:"trades" validate:"max=500"`
	Description string `json:"description" validate:"max=2000"`
}

// Profile converts the request into a domain profile / Convertit en profil du domaine
func (p ProfileDTO) Profile() domain.Profile {
	return domain.Profile{
		CompanyName: p.CompanyName,
		Siret:       p.Siret,
		Phone:       p.Phone,
		City:        p.City,
		Trades:      p.Trades,
		Description: p.Description,
	}
}

// RoleUpdateDTO changes the role of a user / Change le rôle d'un utilisateur
type RoleUpdateDTO struct {
	Role string `json:"role" validate:"required,oneof=donneur_ordre sous_traitant moderator admin"`
}

// UserResponse is the private view of an account / Vue privée d'un compte
type UserResponse struct {
	ID            int64      `json:"id"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	EmailVerified bool       `json:"email_verified"`
	Profile       ProfileDTO `json:"profile"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewUserResponse builds the private view / Construit la vue privée
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		Role:          string(u.Role),
		EmailVerified: u.EmailVerified,
		Profile:       profileDTO(u.Profile),
		LockedUntil:   u.LockedUntil,
		CreatedAt:     u.CreatedAt,
	}
}

func profileDTO(p domain.Profile) ProfileDTO {
	return ProfileDTO{
		CompanyName: p.CompanyName,
		Siret:       p.Siret,
		Phone:       p.Phone,
		City:        p.City,
		Trades:      p.Trades,
		Description: p.Description,
	}
}

// VerificationDTO is the document verification aggregate / Agrégat de vérification documentaire
type VerificationDTO struct {
	Status  string   `json:"status"`
	Missing []string `json:"missing"`
}

// NewVerificationDTO converts the service aggregate / Convertit l'agrégat
func NewVerificationDTO(v service.Verification) VerificationDTO {
	missing := make([]string, 0, len(v.Missing))
	for _, t := range v.Missing {
		missing = append(missing, string(t))
	}
	return VerificationDTO{Status: string(v.Status), Missing: missing}
}

// MeResponse is GET /api/me / Réponse de GET /api/me
type MeResponse struct {
	User         UserResponse    `json:"user"`
	Verification VerificationDTO `json:"verification"`
}

// NewMeResponse builds the caller view / Construit la vue de l'appelant
func NewMeResponse(me *service.Me) MeResponse {
	return MeResponse{User: NewUserResponse(me.User), Verification: NewVerificationDTO(me.Verification)}
}

// RatingDTO summarizes evaluations / Synthèse des évaluations
type RatingDTO struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

func ratingDTO(r domain.RatingSummary) RatingDTO {
	return RatingDTO{Average: r.Average, Count: r.Count}
}

// PublicProfileResponse is the public company card / Fiche entreprise publique
type PublicProfileResponse struct {
	ID           int64               `json:"id"`
	Role         string              `json:"role"`
	CompanyName  string              `json:"company_name"`
	City         string              `json:"city,omitempty"`
	Trades       []string            `json:"trades"`
	Description  string              `json:"description,omitempty"`
	Rating       RatingDTO           `json:"rating"`
	Verification string              `json:"verification_status"`
	References   []ReferenceResponse `json:"references"`
	MemberSince  time.Time           `json:"member_since"`
}

// NewPublicProfileResponse builds the public card / Construit la fiche publique
func NewPublicProfileResponse(p *service.PublicProfile) PublicProfileResponse {
	refs := make([]ReferenceResponse, 0, len(p.References))
	for _, r := range p.References {
		refs = append(refs, NewReferenceResponse(r))
	}
	return PublicProfileResponse{
		ID:           p.User.ID,
		Role:         string(p.User.Role),
		CompanyName:  p.User.Profile.CompanyName,
		City:         p.User.Profile.City,
		Trades:       splitTrades(p.User.Profile.Trades),
		Description:  p.User.Profile.Description,
		Rating:       ratingDTO(p.Rating),
		Verification: string(p.Verification.Status),
		References:   refs,
		MemberSince:  p.User.CreatedAt,
	}
}

func splitTrades(s string) []string {
	out := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
