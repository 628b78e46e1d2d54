package web

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BakiChantier/chantier-direct-sub000/internal/dto"
	"github.com/BakiChantier/chantier-direct-sub000/internal/service"
	"github.com/BakiChantier/chantier-direct-sub000/internal/service/auth"
)

const registeredMessage = "Registration successful. Please check your email to verify your account."

// sha256hex computes SHA-256 hash of string / Calcule le hash SHA-256 d'une chaîne
func sha256hex(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

// clientBinding hashes the IP and User-Agent bound to refresh tokens / Empreinte IP et User-Agent du client
func (h *Handler) clientBinding(r *http.Request) (ipHash, uaHash string) {
	ip := getIPWithTrustedProxies(r, h.container.Config.Security.TrustedProxies)
	return sha256hex(ip), sha256hex(r.Header.Get("User-Agent"))
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, maxAge int, httpOnly bool) {
	conf := h.container.Config.Auth
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     conf.CookiePath,
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   conf.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		Domain:   conf.CookieDomain,
	})
}

// rotateCSRFToken issues a new CSRF cookie readable by JavaScript / Émet un nouveau cookie CSRF lisible en JavaScript
func (h *Handler) rotateCSRFToken(w http.ResponseWriter) error {
	csrfToken, err := generateCSRFToken()
	if err != nil {
		slog.Error("failed to generate CSRF token", "err", err)
		return err
	}
	h.setCookie(w, "csrf_token", csrfToken, int(h.container.Config.Auth.RefreshTokenDuration.Seconds()), false)
	return nil
}

// setAuthCookies sets access and refresh token cookies / Définit les cookies d'accès et de rafraîchissement
func (h *Handler) setAuthCookies(w http.ResponseWriter, tokenPair *auth.TokenPair) {
	conf := h.container.Config.Auth
	h.setCookie(w, "access_token", tokenPair.AccessToken, int(conf.AccessTokenDuration.Seconds()), true)
	h.setCookie(w, "refresh_token", tokenPair.RefreshToken, int(conf.RefreshTokenDuration.Seconds()), true)
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	h.setCookie(w, "access_token", "", -1, true)
	h.setCookie(w, "refresh_token", "", -1, true)
	h.setCookie(w, "csrf_token", "", -1, false)
}

// Register creates a donneur d'ordre or sous-traitant account / Crée un compte donneur d'ordre ou sous-traitant
// A duplicate email answers like a success to avoid enumeration.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.container.UserSvc.Register(r.Context(), req.Input())
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			messageResponse(w, http.StatusOK, registeredMessage)
			return
		}
		writeServiceError(w, err)
		return
	}

	if err := h.container.VerificationSvc.SendVerificationEmail(r.Context(), user); err != nil {
		slog.Error("failed to send verification email", "user_id", user.ID, "err", err)
	}

	messageResponse(w, http.StatusOK, registeredMessage)
}

// Login authenticates and returns tokens as cookies and in the body / Authentifie et renvoie les tokens en cookies et dans le corps
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.UserDTOReq
	if !decodeJSON(w, r, &req) {
		return
	}

	ipHash, uaHash := h.clientBinding(r)
	user, tokenPair, err := h.container.AuthSvc.Login(r.Context(), req.Username, req.Password, ipHash, uaHash)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			h.container.Metrics.RecordLoginAttempt("failure")
			ErrorResponse(w, err.Error(), http.StatusUnauthorized)
		case errors.Is(err, service.ErrAccountLocked):
			h.container.Metrics.RecordLoginAttempt("locked")
			ErrorResponse(w, err.Error(), http.StatusUnauthorized)
		case errors.Is(err, service.ErrEmailNotVerified):
			h.container.Metrics.RecordLoginAttempt("unverified")
			ErrorResponse(w, err.Error(), http.StatusUnauthorized)
		default:
			slog.Error("login failed", "err", err)
			ErrorResponse(w, "authentication failed", http.StatusInternalServerError)
		}
		return
	}

	h.container.Metrics.RecordLoginAttempt("success")
	h.setAuthCookies(w, tokenPair)
	if err := h.rotateCSRFToken(w); err != nil {
		ErrorResponse(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := dto.UserLoginToDTO(user)
	resp.AccessToken = tokenPair.AccessToken
	resp.RefreshToken = tokenPair.RefreshToken
	resp.ExpiresAt = tokenPair.ExpiresAt.Unix()
	jsonResponse(w, resp)
}

// RefreshToken rotates the refresh token / Fait tourner le refresh token
// The token comes from the JSON body or, for cookie sessions, from the
// refresh_token cookie together with a matching CSRF header.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	if req.RefreshToken == "" {
		cookie, err := r.Cookie("refresh_token")
		if err != nil || cookie.Value == "" {
			ErrorResponse(w, "Invalid request", http.StatusBadRequest)
			return
		}
		csrf, err := r.Cookie("csrf_token")
		header := r.Header.Get(CSRFHeader)
		if err != nil || header == "" || subtle.ConstantTimeCompare([]byte(csrf.Value), []byte(header)) != 1 {
			h.container.Metrics.RecordCSRFFailure()
			ErrorResponse(w, "Forbidden", http.StatusForbidden)
			return
		}
		req.RefreshToken = cookie.Value
	}

	ipHash, uaHash := h.clientBinding(r)
	tokenPair, err := h.container.AuthSvc.RefreshToken(r.Context(), req.RefreshToken, ipHash, uaHash)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTokenBinding):
			h.container.Metrics.RecordTokenRefresh("binding_failure")
			h.container.Metrics.RecordTokenBindingFailure()
		case errors.Is(err, service.ErrTokenExpired), errors.Is(err, service.ErrInvalidToken):
			h.container.Metrics.RecordTokenRefresh("expired")
		default:
			h.container.Metrics.RecordTokenRefresh("invalid")
		}
		writeServiceError(w, err)
		return
	}

	h.container.Metrics.RecordTokenRefresh("success")
	h.setAuthCookies(w, tokenPair)
	jsonResponse(w, tokenPair)
}

// Logout revokes every refresh token of the caller / Révoque tous les refresh tokens de l'appelant
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.container.AuthSvc.RevokeAllTokens(r.Context(), userID); err != nil {
		slog.Error("failed to revoke tokens during logout", "user_id", userID, "err", err)
		ErrorResponse(w, "Logout failed", http.StatusInternalServerError)
		return
	}

	h.clearAuthCookies(w)
	messageResponse(w, http.StatusOK, "Logged out successfully")
}

// VerifyEmail confirms the address from the emailed link / Confirme l'adresse depuis le lien envoyé
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		ErrorResponse(w, "missing token", http.StatusBadRequest)
		return
	}

	if err := h.container.VerificationSvc.VerifyEmail(r.Context(), token); err != nil {
		h.container.Metrics.RecordEmailVerification("failure")
		ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.container.Metrics.RecordEmailVerification("success")
	messageResponse(w, http.StatusOK, "email verified")
}

// ResendVerification always answers the same message / Répond toujours le même message
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req dto.ResendVerificationDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	_ = h.container.VerificationSvc.ResendVerification(r.Context(), req.Email)
	messageResponse(w, http.StatusOK, "If the email exists and is not verified, a verification link has been sent")
}

// RequestPasswordReset always answers the same message / Répond toujours le même message
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordResetRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.container.PasswordSvc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		slog.Error("unexpected error in RequestPasswordReset", "err", err)
	}
	messageResponse(w, http.StatusOK, "If an account with that email exists, a password reset link has been sent.")
}

// ResetPassword completes a reset from the emailed token / Termine la réinitialisation depuis le token reçu
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordResetDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.container.PasswordSvc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			validationResponse(w, verr.Fields)
			return
		}
		ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.rotateCSRFToken(w); err != nil {
		slog.Error("failed to rotate CSRF token after password reset", "err", err)
	}
	messageResponse(w, http.StatusOK, "Password has been reset successfully. You can now login with your new password.")
}

// ChangePassword changes the password of the caller / Change le mot de passe de l'appelant
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req dto.ChangePasswordDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.container.PasswordSvc.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}

	h.clearAuthCookies(w)
	messageResponse(w, http.StatusOK, "Password changed. Please log in again.")
}

// Me returns the caller with its document verification / Retourne l'appelant et la vérification de ses documents
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	me, err := h.container.Profiles.Me(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, dto.NewMeResponse(me))
}

// UpdateMe replaces the company profile / Met à jour la fiche entreprise
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req dto.ProfileDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.container.UserSvc.UpdateProfile(r.Context(), userID, req.Profile())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, dto.NewUserResponse(user))
}

// PublicProfile shows the company card of a member / Affiche la fiche entreprise d'un membre
func (h *Handler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	profile, err := h.container.Profiles.Public(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, dto.NewPublicProfileResponse(profile))
}
