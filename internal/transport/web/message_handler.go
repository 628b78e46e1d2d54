package web

import (
	"net/http"
	"strconv"

	"github.com/BakiChantier/chantier-direct-sub000/internal/dto"
)

// SendMessage delivers a private message / Envoie un message privé
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req dto.MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.container.Messages.Send(r.Context(), user, req.Input())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewMessageResponse(msg))
}

// Conversations lists one row per counterpart / Une ligne par interlocuteur
func (h *Handler) Conversations(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())
	convs, err := h.container.Messages.Conversations(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, map[string]any{"conversations": dto.NewConversationList(convs)})
}

// Thread returns the messages exchanged with one user / Messages échangés avec un utilisateur
func (h *Handler) Thread(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())
	q := r.URL.Query()

	otherID, err := strconv.ParseInt(q.Get("with"), 10, 64)
	if err != nil || otherID <= 0 {
		validationResponse(w, map[string]string{"with": "is required"})
		return
	}
	var projectID *int64
	if raw := q.Get("projet_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			validationResponse(w, map[string]string{"projet_id": "must be a positive integer"})
			return
		}
		projectID = &id
	}

	page := pageFrom(r)
	msgs, total, err := h.container.Messages.Thread(r.Context(), userID, otherID, projectID, page)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, map[string]any{
		"messages":   dto.NewMessageList(msgs),
		"pagination": dto.NewPagination(page.Number, page.Size, total),
	})
}

// MarkRead marks the messages received from one user as read / Marque comme lus les messages reçus
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())
	var req dto.MarkReadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.container.Messages.MarkRead(r.Context(), userID, req.With)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, map[string]int64{"updated": n})
}

// UnreadCount returns the unread message count / Nombre de messages non lus
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())
	n, err := h.container.Messages.UnreadCount(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, map[string]int{"unread": n})
}
