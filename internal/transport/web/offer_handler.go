package web

import (
	"net/http"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/dto"
)

// SubmitOffer bids on an open project / Dépose une offre sur un chantier ouvert
func (h *Handler) SubmitOffer(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req dto.OfferRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	offer, err := h.container.Offers.Submit(r.Context(), user, req.Input())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewOfferResponse(offer))
}

// MyOffers lists the caller's bids / Liste les offres de l'appelant
func (h *Handler) MyOffers(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	offers, err := h.container.Offers.ListMine(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, map[string]any{"offres": dto.NewOfferList(offers)})
}

// ProjectOffers lists the bids on an owned project / Liste les offres reçues sur un chantier
func (h *Handler) ProjectOffers(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	views, err := h.container.Offers.ListForProject(r.Context(), user, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, map[string]any{"offres": dto.NewOfferViews(views)})
}

// WithdrawOffer withdraws a pending bid / Retire une offre en attente
func (h *Handler) WithdrawOffer(w http.ResponseWriter, r *http.Request) {
	h.offerDecision(w, r, func(user *domain.User, id int64) (*domain.Offre, error) {
		return h.container.Offers.Withdraw(r.Context(), user, id)
	})
}

// AcceptOffer awards the project to a bid / Attribue le chantier à une offre
func (h *Handler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	h.offerDecision(w, r, func(user *domain.User, id int64) (*domain.Offre, error) {
		return h.container.Offers.Accept(r.Context(), user, id)
	})
}

// RefuseOffer declines a pending bid / Refuse une offre en attente
func (h *Handler) RefuseOffer(w http.ResponseWriter, r *http.Request) {
	h.offerDecision(w, r, func(user *domain.User, id int64) (*domain.Offre, error) {
		return h.container.Offers.Refuse(r.Context(), user, id)
	})
}

func (h *Handler) offerDecision(w http.ResponseWriter, r *http.Request, apply func(*domain.User, int64) (*domain.Offre, error)) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	offer, err := apply(user, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, dto.NewOfferResponse(offer))
}
