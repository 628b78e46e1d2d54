package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BakiChantier/chantier-direct-sub000/internal/app"
	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/dto"
	"github.com/BakiChantier/chantier-direct-sub000/internal/service"
	"github.com/BakiChantier/chantier-direct-sub000/internal/storage"
)

const maxJSONBody = 1 << 20 // 1 MB

// Handler gives HTTP handlers access to the application container.
type Handler struct {
	container *app.Container
}

// NewHandler creates and returns a new Handler instance.
func NewHandler(container *app.Container) *Handler {
	return &Handler{container: container}
}

// ErrorResponse sends a JSON error body / Envoie une erreur JSON
func ErrorResponse(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]any{"error": message})
}

// validationResponse sends 422 with per-field messages / Envoie 422 avec le détail des champs
func validationResponse(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":  service.ErrValidation.Error(),
		"fields": fields,
	})
}

// jsonResponse sends data with 200 / Envoie data avec 200
func jsonResponse(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, data)
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("failed to encode response", "err", err)
	}
}

func messageResponse(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"message": message})
}

// decodeJSON reads a bounded JSON body then validates it / Lit un corps JSON borné puis le valide
// It writes the error response itself and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			ErrorResponse(w, "Request body too large", http.StatusRequestEntityTooLarge)
		case errors.Is(err, io.EOF):
			ErrorResponse(w, "Request body is empty", http.StatusBadRequest)
		default:
			ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		}
		return false
	}
	if fields := dto.Validate(dst); fields != nil {
		validationResponse(w, fields)
		return false
	}
	return true
}

// writeServiceError maps service errors to HTTP statuses / Traduit les erreurs des services en statuts HTTP
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		validationResponse(w, verr.Fields)
		return
	}

	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrUserNotFound):
		ErrorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrNotVerified):
		ErrorResponse(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrOfferExists),
		errors.Is(err, service.ErrProjectClosed),
		errors.Is(err, service.ErrAlreadyEvaluated),
		errors.Is(err, service.ErrLimitReached):
		ErrorResponse(w, err.Error(), http.StatusConflict)
	case errors.Is(err, storage.ErrTooLarge):
		ErrorResponse(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, storage.ErrUnsupportedType):
		ErrorResponse(w, err.Error(), http.StatusUnsupportedMediaType)
	case errors.Is(err, storage.ErrEmpty), errors.Is(err, service.ErrValidation):
		ErrorResponse(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenBinding):
		ErrorResponse(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, service.ErrWrongPassword):
		ErrorResponse(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("unhandled service error", "err", err)
		ErrorResponse(w, service.ErrInternal.Error(), http.StatusInternalServerError)
	}
}

// pathID parses a positive path parameter / Lit un identifiant positif dans le chemin
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		ErrorResponse(w, "Invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// pageFrom reads page and limit query parameters / Lit les paramètres page et limit
func pageFrom(r *http.Request) domain.Page {
	page := domain.Page{Number: 1, Size: 20}
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page.Number = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		page.Size = l
	}
	return service.NormalizePage(page)
}

// currentUser loads the authenticated account / Charge le compte authentifié
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	user, err := h.container.UserSvc.GetUser(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return user, true
}

// optionalUser returns the caller when a valid token was sent / Retourne l'appelant s'il est authentifié
func (h *Handler) optionalUser(r *http.Request) *domain.User {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		return nil
	}
	user, err := h.container.UserSvc.GetUser(r.Context(), userID)
	if err != nil {
		return nil
	}
	return user
}

// hasPermission checks a permission of the caller / Vérifie une permission de l'appelant
func (h *Handler) hasPermission(r *http.Request, user *domain.User, p domain.Permission) bool {
	ok, err := h.container.Repos.Users.UserHasPermission(r.Context(), user.ID, p)
	if err != nil {
		slog.Error("failed to check permission", "user_id", user.ID, "permission", p, "err", err)
		return false
	}
	return ok
}
