package web

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
)

func TestAdminListUsers(t *testing.T) {
	ta := newTestApp(t)
	_, adminToken := ta.member(domain.RoleAdmin, "admin@chantier.test", "")
	_, doToken := ta.member(domain.RoleDonneurOrdre, "do@chantier.test", "Maison Dupont")
	ta.member(domain.RoleSousTraitant, "st@chantier.test", "Zinc & Co")

	rec := ta.do(http.MethodGet, "/api/admin/users", doToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ta.do(http.MethodGet, "/api/admin/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ta.do(http.MethodGet, "/api/admin/users?page=2&limit=2", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Users []struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"users"`
		Pagination struct {
			Page       int `json:"page"`
			Limit      int `json:"limit"`
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
	}
	decode(t, rec, &resp)
	assert.Len(t, resp.Users, 1)
	assert.Equal(t, 2, resp.Pagination.Page)
	assert.Equal(t, 2, resp.Pagination.Limit)
	assert.Equal(t, 3, resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.TotalPages)
}

func TestModeratorPermissions(t *testing.T) {
	ta := newTestApp(t)
	_, modToken := ta.member(domain.RoleModerator, "mod@chantier.test", "")
	st, _ := ta.member(domain.RoleSousTraitant, "st@chantier.test", "Zinc & Co")

	tests := []struct {
		method string
		path   string
		body   any
		want   int
	}{
		{http.MethodGet, "/api/admin/users", nil, http.StatusOK},
		{http.MethodGet, "/api/admin/stats", nil, http.StatusOK},
		{http.MethodGet, "/api/admin/projets", nil, http.StatusOK},
		{http.MethodGet, "/api/admin/documents", nil, http.StatusOK},
		{http.MethodDelete, "/api/admin/users/" + itoa(st.ID), nil, http.StatusForbidden},
		{http.MethodPatch, "/api/admin/users/" + itoa(st.ID) + "/role", map[string]string{"role": "admin"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := ta.do(tt.method, tt.path, modToken, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestAdminUpdateRole(t *testing.T) {
	ta := newTestApp(t)
	_, adminToken := ta.member(domain.RoleAdmin, "admin@chantier.test", "")
	st, stToken := ta.member(domain.RoleSousTraitant, "st@chantier.test", "Zinc & Co")
	path := "/api/admin/users/" + itoa(st.ID) + "/role"

	rec := ta.do(http.MethodPatch, path, adminToken, map[string]string{"role": "superuser"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ta.do(http.MethodPatch, "/api/admin/users/9999/role", adminToken, map[string]string{"role": "moderator"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ta.do(http.MethodGet, "/api/admin/documents", stToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = ta.do(http.MethodPatch, path, adminToken, map[string]string{"role": "moderator"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Permissions are read per request / Les permissions sont relues à chaque requête
	rec = ta.do(http.MethodGet, "/api/admin/documents", stToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	u, err := ta.c.Repos.Users.GetByID(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleModerator, u.Role)
}

func TestAdminDeleteUser(t *testing.T) {
	ta := newTestApp(t)
	admin, adminToken := ta.member(domain.RoleAdmin, "admin@chantier.test", "")
	st, _ := ta.member(domain.RoleSousTraitant, "st@chantier.test", "Zinc & Co")

	rec := ta.do(http.MethodDelete, "/api/admin/users/"+itoa(admin.ID), adminToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "admins cannot delete themselves")

	rec = ta.do(http.MethodDelete, "/api/admin/users/"+itoa(st.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ta.do(http.MethodDelete, "/api/admin/users/"+itoa(st.ID), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ta.do(http.MethodGet, "/api/users/"+itoa(st.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ta.do(http.MethodPost, "/api/login", "", map[string]string{"email": "st@chantier.test", "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminStats(t *testing.T) {
	ta := newTestApp(t)
	_, adminToken := ta.member(domain.RoleAdmin, "admin@chantier.test", "")
	owner, doToken := ta.member(domain.RoleDonneurOrdre, "do@chantier.test", "Maison Dupont")
	st, stToken := ta.member(domain.RoleSousTraitant, "st@chantier.test", "Zinc & Co")
	ta.verifyDocuments(owner)
	ta.verifyDocuments(st)

	projectID := ta.openProject(doToken, "Charpente")
	rec := ta.do(http.MethodPost, "/api/donneur-ordre/projets", doToken, projectBody("Bardage"))
	require.Equal(t, http.StatusCreated, rec.Code)
	code, _ := ta.bid(stToken, projectID, 7000)
	require.Equal(t, http.StatusCreated, code)
	ta.uploadDocument(stToken, "RIB", nil)

	rec = ta.do(http.MethodGet, "/api/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats struct {
		UsersByRole          map[string]int `json:"users_by_role"`
		ProjectsByModeration map[string]int `json:"projects_by_moderation"`
		OffersByStatus       map[string]int `json:"offers_by_status"`
		DocumentsPending     int            `json:"documents_pending"`
	}
	decode(t, rec, &stats)
	assert.Equal(t, 1, stats.UsersByRole["admin"])
	assert.Equal(t, 1, stats.UsersByRole["donneur_ordre"])
	assert.Equal(t, 1, stats.UsersByRole["sous_traitant"])
	assert.Equal(t, 1, stats.ProjectsByModeration["VALIDATED"])
	assert.Equal(t, 1, stats.ProjectsByModeration["PENDING"])
	assert.Equal(t, 1, stats.OffersByStatus["EN_ATTENTE"])
	assert.Equal(t, 1, stats.DocumentsPending)
}

func TestModerationQueueFilters(t *testing.T) {
	ta := newTestApp(t)
	owner, doToken := ta.member(domain.RoleDonneurOrdre, "do@chantier.test", "Maison Dupont")
	_, modToken := ta.member(domain.RoleModerator, "mod@chantier.test", "")
	ta.verifyDocuments(owner)

	ta.openProject(doToken, "Validé")
	rec := ta.do(http.MethodPost, "/api/donneur-ordre/projets", doToken, projectBody("En attente"))
	require.Equal(t, http.StatusCreated, rec.Code)

	count := func(query string) int {
		rec := ta.do(http.MethodGet, "/api/admin/projets"+query, modToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp struct {
			Projets []projectJSON `json:"projets"`
		}
		decode(t, rec, &resp)
		return len(resp.Projets)
	}
	assert.Equal(t, 1, count(""))
	assert.Equal(t, 1, count("?status=validated"))
	assert.Equal(t, 0, count("?status=REJECTED"))

	rec = ta.do(http.MethodGet, "/api/admin/projets?status=archived", modToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ta.do(http.MethodPost, "/api/admin/projets/9999/validate", modToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
