package web

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/events"
)

type projectJSON struct {
	ID             int64  `json:"id"`
	Title          string `json:"titre"`
	Moderation     string `json:"statut_moderation"`
	Status         string `json:"statut"`
	AwardedOfferID *int64 `json:"offre_retenue_id"`
	OfferCount     int    `json:"nombre_offres"`
	Images         []struct {
		ID  int64  `json:"id"`
		URL string `json:"url"`
	} `json:"images"`
}

type offerJSON struct {
	ID          int64   `json:"id"`
	ProjectID   int64   `json:"projet_id"`
	Amount      float64 `json:"montant"`
	Status      string  `json:"statut"`
	CompanyName string  `json:"entreprise"`
}

func (ta *testApp) project(token string, id int64) (int, projectJSON) {
	ta.t.Helper()
	rec := ta.do(http.MethodGet, "/api/projets/"+itoa(id), token, nil)
	var p projectJSON
	if rec.Code == http.StatusOK {
		decode(ta.t, rec, &p)
	}
	return rec.Code, p
}

func (ta *testApp) bid(token string, projectID int64, amount float64) (int, offerJSON) {
	ta.t.Helper()
	rec := ta.do(http.MethodPost, "/api/sous-traitant/offres", token, map[string]any{
		"projet_id": projectID, "montant": amount, "delai_jours": 20, "message": "Disponible dès le mois prochain",
	})
	var o offerJSON
	if rec.Code == http.StatusCreated {
		decode(ta.t, rec, &o)
	}
	return rec.Code, o
}

func TestMarketplaceFlow(t *testing.T) {
	ta := newTestApp(t)
	owner, doToken := ta.member(domain.RoleDonneurOrdre, "do@chantier.test", "Maison Dupont")
	st, stToken := ta.member(domain.RoleSousTraitant, "st@chantier.test", "Zinc & Co")
	_, otherToken := ta.member(domain.RoleSousTraitant, "st2@chantier.test", "Toits du Rhône")
	_, modToken := ta.member(domain.RoleModerator, "mod@chantier.test", "")

	// Unverified owners cannot post / Un donneur d'ordre non vérifié ne peut pas publier
	rec := ta.do(http.MethodPost, "/api/donneur-ordre/projets", doToken, projectBody("Réfection toiture"))
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	ta.verifyDocuments(owner)
	ta.verifyDocuments(st)

	rec = ta.do(http.MethodPost, "/api/donneur-ordre/projets", doToken, projectBody("Réfection toiture"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created projectJSON
	decode(t, rec, &created)
	assert.Equal(t, "PENDING", created.Moderation)
	assert.Equal(t, "OUVERT", created.Status)

	// Pending projects are hidden from the public / Les chantiers en attente sont masqués
	code, _ := ta.project("", created.ID)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = ta.project(doToken, created.ID)
	assert.Equal(t, http.StatusOK, code, "owner sees its pending project")

	code, _ = ta.bid(stToken, created.ID, 9500)
	assert.Equal(t, http.StatusNotFound, code, "no bids before moderation")

	// Moderation / Modération
	rec = ta.do(http.MethodGet, "/api/admin/projets", modToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var queue struct {
		Projets []projectJSON `json:"projets"`
	}
	decode(t, rec, &queue)
	require.Len(t, queue.Projets, 1)

	rec = ta.do(http.MethodPost, "/api/admin/projets/"+itoa(created.ID)+"/validate", modToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ta.do(http.MethodPost, "/api/admin/projets/"+itoa(created.ID)+"/validate", doToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "owners cannot moderate")

	rec = ta.do(http.MethodGet, "/api/projets?city=lyon&budget_min=10000", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Projets    []projectJSON `json:"projets"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	decode(t, rec, &listing)
	require.Len(t, listing.Projets, 1)
	assert.Equal(t, 1, listing.Pagination.Total)

	// Bids / Offres
	code, offer := ta.bid(stToken, created.ID, 9500)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, 9500.0, offer.Amount)
	assert.Equal(t, "EN_ATTENTE", offer.Status)

	code, _ = ta.bid(stToken, created.ID, 9000)
	assert.Equal(t, http.StatusConflict, code, "one active bid per subcontractor")

	code, _ = ta.bid(otherToken, created.ID, 8000)
	assert.Equal(t, http.StatusForbidden, code, "unverified subcontractor")

	rec = ta.do(http.MethodPost, "/api/sous-traitant/offres", doToken, map[string]any{"projet_id": created.ID, "montant": 1, "delai_jours": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code, "owners do not hold offers:submit")

	rec = ta.do(http.MethodGet, "/api/donneur-ordre/projets/"+itoa(created.ID)+"/offres", doToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var offers struct {
		Offres []offerJSON `json:"offres"`
	}
	decode(t, rec, &offers)
	require.Len(t, offers.Offres, 1)
	assert.Equal(t, "Zinc & Co", offers.Offres[0].CompanyName)

	rec = ta.do(http.MethodPost, "/api/donneur-ordre/offres/"+itoa(offer.ID)+"/accept", doToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	code, awarded := ta.project(doToken, created.ID)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ATTRIBUE", awarded.Status)
	require.NotNil(t, awarded.AwardedOfferID)
	assert.Equal(t, offer.ID, *awarded.AwardedOfferID)

	rec = ta.do(http.MethodPost, "/api/donneur-ordre/offres/"+itoa(offer.ID)+"/accept", doToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "a project is awarded once")

	// Evaluations need a completed project / Les évaluations exigent un chantier terminé
	rec = ta.do(http.MethodPost, "/api/evaluations", doToken, map[string]any{"projet_id": created.ID, "rating": 5})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ta.do(http.MethodPost, "/api/donneur-ordre/projets/"+itoa(created.ID)+"/complete", doToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ta.do(http.MethodPost, "/api/evaluations", doToken, map[string]any{"projet_id": created.ID, "rating": 5, "comment": "Travail soigné"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = ta.do(http.MethodPost, "/api/evaluations", doToken, map[string]any{"projet_id": created.ID, "rating": 4})
	assert.Equal(t, http.StatusConflict, rec.Code, "one evaluation per project and evaluator")
	rec = ta.do(http.MethodPost, "/api/evaluations", stToken, map[string]any{"projet_id": created.ID, "rating": 4})
	require.Equal(t, http.StatusCreated, rec.Code, "subcontractors rate owners too")
	rec = ta.do(http.MethodPost, "/api/evaluations", otherToken, map[string]any{"projet_id": created.ID, "rating": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ta.do(http.MethodGet, "/api/users/"+itoa(st.ID)+"/evaluations", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var evals struct {
		Evaluations []struct {
			Rating int `json:"rating"`
		} `json:"evaluations"`
		Rating struct {
			Average float64 `json:"average"`
			Count   int     `json:"count"`
		} `json:"rating"`
	}
	decode(t, rec, &evals)
	require.Len(t, evals.Evaluations, 1)
	assert.Equal(t, 5.0, evals.Rating.Average)
	assert.Equal(t, 1, evals.Rating.Count)

	rec = ta.do(http.MethodGet, "/api/sous-traitant/offres", stToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine struct {
		Offres []offerJSON `json:"offres"`
	}
	decode(t, rec, &mine)
	require.Len(t, mine.Offres, 1)
	assert.Equal(t, "ACCEPTEE", mine.Offres[0].Status)

	for _, subject := range []string{events.ProjectSubmitted, events.ProjectModerated, events.OfferSubmitted, events.OfferStatusChanged} {
		assert.Positive(t, ta.events.Count(subject), subject)
	}

	ta.c.Notifier.Wait()
	assert.NotEmpty(t, ta.mail.SentTo("do@chantier.test"), "owner is told about the bid")
	assert.NotEmpty(t, ta.mail.SentTo("st@chantier.test"), "subcontractor is told about the decision")
}

func TestAcceptRefusesOtherBids(t *testing.T) {
	ta := newTestApp(t)
	owner, doToken := ta.member(domain.RoleDonneurOrdre, "do@chantier.test", "Maison Dupont")
	st1, token1 := ta.member(domain.RoleSousTraitant, "st1@chantier.test", "Zinc & Co")
	st2, token2 := ta.member(domain.RoleSousTraitant, "st2@chantier.test", "Toits du Rhône")
	for _, u := range []*domain.User{owner, st1, st2} {
		ta.verifyDocuments(u)
	}
	projectID := ta.openProject(doToken, "Isolation combles")

	_, first := ta.bid(token1, projectID, 4000)
	_, second := ta.bid(token2, projectID, 4200)

	rec := ta.do(http.MethodPost, "/api/donneur-ordre/offres/"+itoa(second.ID)+"/accept", token1, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "subcontractors cannot accept")

	rec = ta.do(http.MethodPost, "/api/donneur-ordre/offres/"+itoa(second.ID)+"/accept", doToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ta.do(http.MethodGet, "/api/sous-traitant/offres", token1, nil)
	var mine struct {
		Offres []offerJSON `json:"offres"`
	}
	decode(t, rec, &mine)
	require.Len(t, mine.Offres, 1)
	assert.Equal(t, first.ID, mine.Offres[0].ID)
	assert.Equal(t, "REFUSEE", mine.Offres[0].Status)

	// Awarded projects leave the public listing / Un chantier attribué quitte le catalogue
	rec = ta.do(http.MethodGet, "/api/projets", "", nil)
	var listing struct {
		Projets []projectJSON `json:"projets"`
	}
	decode(t, rec, &listing)
	assert.Empty(t, listing.Projets)
}

func TestWithdrawAndRebid(t *testing.T) {
	ta := newTestApp(t)
	owner, doToken := ta.member(domain.RoleDonneurOrdre, "do@chantier.test", "Maison Dupont")
	st, stToken := ta.member(domain.RoleSousTraitant, "st@chantier.test", "Zinc & Co")
	ta.verifyDocuments(owner)
	ta.verifyDocuments(st)
	projectID := ta.openProject(doToken, "Ravalement de façade")

	_, offer := ta.bid(stToken, projectID, 12000)
	rec := ta.do(http.MethodPost, "/api/sous-traitant/offres/"+itoa(offer.ID)+"/withdraw", stToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ta.do(http.MethodPost, "/api/sous-traitant/offres/"+itoa(offer.ID)+"/withdraw", stToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	code, rebid := ta.bid(stToken, projectID, 11000)
	require.Equal(t, http.StatusCreated, code, "withdrawn bids can be replaced")

	rec = ta.do(http.MethodPost, "/api/donneur-ordre/offres/"+itoa(rebid.ID)+"/refuse", doToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	code, _ = ta.bid(stToken, projectID, 10000)
	assert.Equal(t, http.StatusConflict, code, "refused bidders cannot bid again")
}

func TestProjectLifecycleByOwner(t *testing.T) {
	ta := newTestApp(t)
	owner, doToken := ta.member(domain.RoleDonneurOrdre, "do@chantier.test", "Maison Dupont")
	_, otherToken := ta.member(domain.RoleDonneurOrdre, "do2@chantier.test", "Autre SCI")
	ta.verifyDocuments(owner)
	_, modToken := ta.member(domain.RoleModerator, "mod@chantier.test", "")

	rec := ta.do(http.MethodPost, "/api/donneur-ordre/projets", doToken, projectBody("Extension bois"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var p projectJSON
	decode(t, rec, &p)

	rec = ta.do(http.MethodPost, "/api/admin/projets/"+itoa(p.ID)+"/reject", modToken, map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "a reason is required")
	rec = ta.do(http.MethodPost, "/api/admin/projets/"+itoa(p.ID)+"/reject", modToken, map[string]string{"reason": "Description trop vague"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Editing a rejected project sends it back to moderation / Modifier un chantier refusé le renvoie en modération
	body := projectBody("Extension bois 20 m²")
	rec = ta.do(http.MethodPut, "/api/donneur-ordre/projets/"+itoa(p.ID), otherToken, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ta.do(http.MethodPut, "/api/donneur-ordre/projets/"+itoa(p.ID), doToken, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var edited projectJSON
	decode(t, rec, &edited)
	assert.Equal(t, "PENDING", edited.Moderation)
	assert.Equal(t, "Extension bois 20 m²", edited.Title)

	body["code_postal"] = "690"
	rec = ta.do(http.MethodPut, "/api/donneur-ordre/projets/"+itoa(p.ID), doToken, body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ta.do(http.MethodGet, "/api/donneur-ordre/projets", doToken, nil)
	var mine struct {
		Projets []projectJSON `json:"projets"`
	}
	decode(t, rec, &mine)
	require.Len(t, mine.Projets, 1)

	rec = ta.do(http.MethodPost, "/api/donneur-ordre/projets/"+itoa(p.ID)+"/complete", doToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "only awarded projects complete")

	rec = ta.do(http.MethodPost, "/api/donneur-ordre/projets/"+itoa(p.ID)+"/cancel", doToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cancelled projectJSON
	decode(t, rec, &cancelled)
	assert.Equal(t, "ANNULE", cancelled.Status)

	rec = ta.do(http.MethodPut, "/api/donneur-ordre/projets/"+itoa(p.ID), doToken, projectBody("Trop tard"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestProjectImages(t *testing.T) {
	ta := newTestApp(t)
	owner, doToken := ta.member(domain.RoleDonneurOrdre, "do@chantier.test", "Maison Dupont")
	ta.verifyDocuments(owner)
	projectID := ta.openProject(doToken, "Terrasse")
	path := "/api/donneur-ordre/projets/" + itoa(projectID) + "/images"

	rec := ta.upload(path, doToken, nil, "photo.png", pngBytes)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var img struct {
		ID       int64  `json:"id"`
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	decode(t, rec, &img)
	assert.Equal(t, "image/png", img.MimeType)
	require.Contains(t, img.URL, "/uploads/projets/")

	// The public file server streams the stored bytes / Le serveur de fichiers renvoie les octets stockés
	rec = ta.do(http.MethodGet, img.URL, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pngBytes, rec.Body.Bytes())

	rec = ta.upload(path, doToken, nil, "devis.pdf", pdfBytes)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = ta.upload(path, doToken, nil, "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	for i := 0; i < 2; i++ {
		rec = ta.upload(path, doToken, nil, "photo.png", pngBytes)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec = ta.upload(path, doToken, nil, "photo.png", pngBytes)
	assert.Equal(t, http.StatusConflict, rec.Code, "image limit reached")

	code, p := ta.project("", projectID)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, p.Images, 3)

	rec = ta.do(http.MethodDelete, path+"/"+itoa(img.ID), doToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ta.do(http.MethodGet, img.URL, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMessages(t *testing.T) {
	ta := newTestApp(t)
	do, doToken := ta.member(domain.RoleDonneurOrdre, "do@chantier.test", "Maison Dupont")
	st, stToken := ta.member(domain.RoleSousTraitant, "st@chantier.test", "Zinc & Co")

	rec := ta.do(http.MethodPost, "/api/messages", stToken, map[string]any{"recipient_id": st.ID, "body": "Moi-même"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "no messages to self")

	rec = ta.do(http.MethodPost, "/api/messages", stToken, map[string]any{"recipient_id": 9999, "body": "Bonjour"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, body := range []string{"Bonjour, le chantier est-il toujours ouvert ?", "Je peux passer jeudi."} {
		rec = ta.do(http.MethodPost, "/api/messages", stToken, map[string]any{"recipient_id": do.ID, "body": body})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	unread := func(token string) int {
		rec := ta.do(http.MethodGet, "/api/messages/unread-count", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Unread int `json:"unread"`
		}
		decode(t, rec, &resp)
		return resp.Unread
	}
	assert.Equal(t, 2, unread(doToken))
	assert.Equal(t, 0, unread(stToken))

	rec = ta.do(http.MethodGet, "/api/messages/conversations", doToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var convs struct {
		Conversations []struct {
			CounterpartID int64  `json:"interlocuteur_id"`
			Company       string `json:"interlocuteur"`
			UnreadCount   int    `json:"non_lus"`
			LastMessage   struct {
				Body string `json:"body"`
			} `json:"dernier_message"`
		} `json:"conversations"`
	}
	decode(t, rec, &convs)
	require.Len(t, convs.Conversations, 1)
	assert.Equal(t, st.ID, convs.Conversations[0].CounterpartID)
	assert.Equal(t, "Zinc & Co", convs.Conversations[0].Company)
	assert.Equal(t, 2, convs.Conversations[0].UnreadCount)
	assert.Equal(t, "Je peux passer jeudi.", convs.Conversations[0].LastMessage.Body)

	rec = ta.do(http.MethodGet, "/api/messages?with="+itoa(st.ID), doToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var thread struct {
		Messages []struct {
			Body string `json:"body"`
		} `json:"messages"`
	}
	decode(t, rec, &thread)
	require.Len(t, thread.Messages, 2)
	assert.Equal(t, "Bonjour, le chantier est-il toujours ouvert ?", thread.Messages[0].Body)

	rec = ta.do(http.MethodGet, "/api/messages", doToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "with is required")

	rec = ta.do(http.MethodPost, "/api/messages/read", doToken, map[string]any{"with": st.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	var marked struct {
		Updated int64 `json:"updated"`
	}
	decode(t, rec, &marked)
	assert.EqualValues(t, 2, marked.Updated)
	assert.Equal(t, 0, unread(doToken))
	assert.Equal(t, 2, ta.events.Count(events.MessageSent))
}

func TestReferences(t *testing.T) {
	ta := newTestApp(t)
	st, stToken := ta.member(domain.RoleSousTraitant, "st@chantier.test", "Zinc & Co")
	_, doToken := ta.member(domain.RoleDonneurOrdre, "do@chantier.test", "Maison Dupont")

	rec := ta.upload("/api/sous-traitant/references", stToken, map[string]string{
		"titre": "Couverture zinc, Croix-Rousse", "annee": "2023", "ville": "Lyon",
	}, "chantier.png", pngBytes)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ref struct {
		ID       int64  `json:"id"`
		Year     int    `json:"annee"`
		ImageURL string `json:"image_url"`
	}
	decode(t, rec, &ref)
	assert.Equal(t, 2023, ref.Year)
	assert.Contains(t, ref.ImageURL, "/uploads/references/")

	rec = ta.upload("/api/sous-traitant/references", stToken, map[string]string{"title": "Sans photo"}, "", nil)
	require.Equal(t, http.StatusCreated, rec.Code, "the image is optional")

	rec = ta.upload("/api/sous-traitant/references", stToken, map[string]string{"titre": "Année folle", "annee": "deux mille"}, "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ta.upload("/api/sous-traitant/references", doToken, map[string]string{"titre": "Pas un ST"}, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ta.do(http.MethodGet, "/api/users/"+itoa(st.ID)+"/references", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		References []struct {
			ID int64 `json:"id"`
		} `json:"references"`
	}
	decode(t, rec, &list)
	assert.Len(t, list.References, 2)

	rec = ta.do(http.MethodDelete, "/api/sous-traitant/references/"+itoa(ref.ID), stToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ta.do(http.MethodDelete, "/api/sous-traitant/references/"+itoa(ref.ID), stToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContact(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.do(http.MethodPost, "/api/contact", "", map[string]string{
		"name": "Jeanne", "email": "jeanne@example.com", "subject": "Partenariat",
		"message": "Bonjour, nous aimerions référencer notre réseau d'artisans.",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = ta.do(http.MethodPost, "/api/contact", "", map[string]string{"name": "Jeanne", "email": "jeanne@example.com", "message": "court"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	ta.c.Notifier.Wait()
	sent := ta.mail.SentTo("contact@chantier.test")
	require.Len(t, sent, 1)
	assert.Equal(t, "jeanne@example.com", sent[0].ReplyTo)
}

func TestMarketplaceValidationFieldsUseWireNames(t *testing.T) {
	ta := newTestApp(t)
	do, _ := ta.member(domain.RoleDonneurOrdre, "do@chantier.test", "Maison Dupont")
	_, stToken := ta.member(domain.RoleSousTraitant, "st@chantier.test", "Zinc & Co")

	tests := []struct {
		name  string
		path  string
		body  map[string]any
		field string
	}{
		{"message without body", "/api/messages", map[string]any{"recipient_id": do.ID, "body": ""}, "body"},
		{"message without recipient", "/api/messages", map[string]any{"body": "Bonjour"}, "recipient_id"},
		{"rating out of range", "/api/evaluations", map[string]any{"projet_id": 1, "rating": 9}, "rating"},
		{"comment too long", "/api/evaluations", map[string]any{"projet_id": 1, "rating": 4, "comment": strings.Repeat("a", 2001)}, "comment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ta.do(http.MethodPost, tt.path, stToken, tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			var resp struct {
				Fields map[string]string `json:"fields"`
			}
			decode(t, rec, &resp)
			assert.Contains(t, resp.Fields, tt.field)
		})
	}
}
