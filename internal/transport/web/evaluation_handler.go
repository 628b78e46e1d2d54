package web

import (
	"net/http"

	"github.com/BakiChantier/chantier-direct-sub000/internal/dto"
)

// CreateEvaluation rates the other party of a completed project / Évalue l'autre partie d'un chantier terminé
func (h *Handler) CreateEvaluation(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req dto.EvaluationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	eval, err := h.container.Evaluations.Create(r.Context(), user, req.Input())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewEvaluationResponse(eval))
}

// UserEvaluations lists the ratings a user received / Liste les évaluations reçues
func (h *Handler) UserEvaluations(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	evals, summary, err := h.container.Evaluations.ListForUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, dto.NewEvaluationList(evals, summary))
}
