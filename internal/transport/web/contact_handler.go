package web

import (
	"net/http"

	"github.com/BakiChantier/chantier-direct-sub000/internal/dto"
)

// Contact forwards the public contact form / Transmet le formulaire de contact
func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	var req dto.ContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.container.Contact.Send(r.Context(), req.Input()); err != nil {
		writeServiceError(w, err)
		return
	}
	messageResponse(w, http.StatusAccepted, "Message sent")
}
