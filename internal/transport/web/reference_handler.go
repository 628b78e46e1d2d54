package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/BakiChantier/chantier-direct-sub000/internal/dto"
	"github.com/BakiChantier/chantier-direct-sub000/internal/service"
)

// CreateReference adds a portfolio entry, the image part is optional / Ajoute une réalisation, image facultative
func (h *Handler) CreateReference(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	file, _, ok := formFile(w, r, limitOr(h.container.Config.Storage.MaxImageBytes, 5<<20), false)
	if !ok {
		return
	}

	in := service.ReferenceInput{
		Title:       formValue(r, "titre", "title"),
		Description: r.FormValue("description"),
		City:        formValue(r, "ville", "city"),
	}
	if raw := strings.TrimSpace(formValue(r, "annee", "year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			validationResponse(w, map[string]string{"annee": "must be a year"})
			return
		}
		in.Year = year
	}
	if file != nil {
		defer file.Close()
		in.Image = file
	}

	ref, err := h.container.References.Create(r.Context(), user, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewReferenceResponse(ref))
}

// UserReferences lists a subcontractor's portfolio / Liste les réalisations d'un sous-traitant
func (h *Handler) UserReferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	refs, err := h.container.References.ListByUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]dto.ReferenceResponse, 0, len(refs))
	for _, ref := range refs {
		out = append(out, dto.NewReferenceResponse(ref))
	}
	jsonResponse(w, map[string]any{"references": out})
}

// DeleteReference removes one of the caller's references / Supprime une réalisation de l'appelant
func (h *Handler) DeleteReference(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.container.References.Delete(r.Context(), user, id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// formValue returns the first non-empty field among names / Premier champ non vide parmi names
func formValue(r *http.Request, names ...string) string {
	for _, n := range names {
		if v := r.FormValue(n); v != "" {
			return v
		}
	}
	return ""
}
