package web

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/dto"
)

// ListUsers returns paginated list of users / Retourne la liste paginée des utilisateurs
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := pageFrom(r)
	offset := (page.Number - 1) * page.Size

	users, total, err := h.container.UserSvc.ListUsers(r.Context(), offset, page.Size)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, dto.NewUserResponse(u))
	}
	jsonResponse(w, map[string]any{
		"users":      out,
		"pagination": dto.NewPagination(page.Number, page.Size, total),
	})
}

// DeleteUser deletes a user by ID / Supprime un utilisateur par ID
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if callerID, _ := UserIDFrom(r.Context()); callerID == userID {
		ErrorResponse(w, "You cannot delete your own account here", http.StatusConflict)
		return
	}

	if err := h.container.UserSvc.DeleteUser(r.Context(), userID); err != nil {
		writeServiceError(w, err)
		return
	}
	messageResponse(w, http.StatusOK, "User deleted successfully")
}

// UpdateUserRole updates user role / Met à jour le rôle d'un utilisateur
func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.RoleUpdateDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	newRole := domain.UserRole(req.Role)
	if !newRole.IsValid() {
		validationResponse(w, map[string]string{"role": "unknown role"})
		return
	}
	if err := h.container.UserSvc.UpdateUserRole(r.Context(), userID, newRole); err != nil {
		writeServiceError(w, err)
		return
	}

	// Role changes alter permissions / Un changement de rôle modifie les permissions
	if err := h.rotateCSRFToken(w); err != nil {
		slog.Error("failed to rotate CSRF token after role update", "err", err)
	}
	messageResponse(w, http.StatusOK, "User role updated successfully")
}

// ModerationQueue lists projects by moderation status / Liste les chantiers par statut de modération
func (h *Handler) ModerationQueue(w http.ResponseWriter, r *http.Request) {
	status := domain.ModerationStatus(strings.ToUpper(r.URL.Query().Get("status")))
	if status == "" {
		status = domain.ModerationPending
	}
	if !status.IsValid() {
		validationResponse(w, map[string]string{"status": "unknown moderation status"})
		return
	}

	page := pageFrom(r)
	projects, total, err := h.container.Moderation.ListProjects(r.Context(), status, page)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, dto.ProjectListResponse{
		Projets:    dto.NewProjectList(projects),
		Pagination: dto.NewPagination(page.Number, page.Size, total),
	})
}

// ValidateProject publishes a pending project / Publie un chantier en attente
func (h *Handler) ValidateProject(w http.ResponseWriter, r *http.Request) {
	moderatorID, _ := UserIDFrom(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.container.Moderation.Validate(r.Context(), moderatorID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, dto.NewProjectResponse(p))
}

// RejectProject refuses a pending project with a reason / Refuse un chantier avec un motif
func (h *Handler) RejectProject(w http.ResponseWriter, r *http.Request) {
	moderatorID, _ := UserIDFrom(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.container.Moderation.Reject(r.Context(), moderatorID, id, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, dto.NewProjectResponse(p))
}

// Stats returns the platform counters / Retourne les compteurs de la plateforme
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.container.Moderation.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, dto.NewStatsResponse(stats))
}
