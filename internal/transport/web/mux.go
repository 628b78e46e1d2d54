package web

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BakiChantier/chantier-direct-sub000/internal/app"
	"github.com/BakiChantier/chantier-direct-sub000/internal/config"
	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
)

// publicUploadPrefixes are the storage folders served without authentication.
// Compliance documents live under "documents/" and are only reachable through DownloadDocument.
var publicUploadPrefixes = []string{"projets", "references"}

// NewMux creates and configures the HTTP router / Crée et configure le routeur HTTP
// The returned func stops the rate limiter janitors.
func NewMux(h *Handler, conf *config.Config, container *app.Container) (http.Handler, func()) {
	mux := http.NewServeMux()
	mw := NewMiddleware(conf, container.Metrics, container.Repos.Users)

	// Probes skip auth / Sondes sans authentification
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /readiness", h.ReadinessCheck)

	mux.Handle("GET /metrics", chain(
		promhttp.HandlerFor(container.Registry, promhttp.HandlerOpts{}).ServeHTTP,
		mw.Auth,
		mw.RequirePermission(domain.PermissionStatsRead),
	))

	uploads := uploadsHandler(container.Storage.Fs(), conf.Storage.PublicURL)
	for _, prefix := range publicUploadPrefixes {
		mux.Handle("GET "+uploadsMount(conf.Storage.PublicURL)+prefix+"/", uploads)
	}

	// Authentication / Authentification
	mux.Handle("POST /api/register", chain(h.Register, mw.RateLimitStrict))
	mux.Handle("POST /api/login", chain(h.Login, mw.RateLimitStrict))
	mux.Handle("GET /verify", chain(h.VerifyEmail, mw.RateLimitStrict))
	mux.Handle("POST /api/resend-verification", chain(h.ResendVerification, mw.RateLimitResend))
	mux.Handle("POST /api/request-password-reset", chain(h.RequestPasswordReset, mw.RateLimitStrict))
	mux.Handle("POST /api/reset-password", chain(h.ResetPassword, mw.RateLimitStrict))
	mux.Handle("POST /api/refresh", chain(h.RefreshToken, mw.RateLimitStrict))

	authed := func(f http.HandlerFunc, extra ...func(http.Handler) http.Handler) http.Handler {
		mws := append([]func(http.Handler) http.Handler{mw.Auth, mw.CSRF}, extra...)
		return chain(f, append(mws, mw.RateLimitByUser)...)
	}
	perm := mw.RequirePermission

	mux.Handle("POST /api/logout", authed(h.Logout))
	mux.Handle("POST /api/change-password", authed(h.ChangePassword))
	mux.Handle("GET /api/me", authed(h.Me))
	mux.Handle("PATCH /api/me", authed(h.UpdateMe))

	// Public profiles / Profils publics
	mux.Handle("GET /api/users/{id}", http.HandlerFunc(h.PublicProfile))
	mux.Handle("GET /api/users/{id}/evaluations", http.HandlerFunc(h.UserEvaluations))
	mux.Handle("GET /api/users/{id}/references", http.HandlerFunc(h.UserReferences))

	// Projects / Chantiers
	mux.Handle("GET /api/projets", http.HandlerFunc(h.ListProjects))
	mux.Handle("GET /api/projets/{id}", chain(h.GetProject, mw.OptionalAuth))
	mux.Handle("POST /api/donneur-ordre/projets", authed(h.CreateProject, perm(domain.PermissionProjectsCreate)))
	mux.Handle("GET /api/donneur-ordre/projets", authed(h.MyProjects, perm(domain.PermissionProjectsCreate)))
	mux.Handle("PUT /api/donneur-ordre/projets/{id}", authed(h.UpdateProject, perm(domain.PermissionProjectsCreate)))
	mux.Handle("POST /api/donneur-ordre/projets/{id}/cancel", authed(h.CancelProject, perm(domain.PermissionProjectsCreate)))
	mux.Handle("POST /api/donneur-ordre/projets/{id}/complete", authed(h.CompleteProject, perm(domain.PermissionProjectsCreate)))
	mux.Handle("POST /api/donneur-ordre/projets/{id}/images", authed(h.UploadProjectImage, perm(domain.PermissionProjectsCreate)))
	mux.Handle("DELETE /api/donneur-ordre/projets/{id}/images/{imageId}", authed(h.DeleteProjectImage, perm(domain.PermissionProjectsCreate)))

	// Offers / Offres
	mux.Handle("GET /api/donneur-ordre/projets/{id}/offres", authed(h.ProjectOffers, perm(domain.PermissionProjectsCreate)))
	mux.Handle("POST /api/donneur-ordre/offres/{id}/accept", authed(h.AcceptOffer, perm(domain.PermissionProjectsCreate)))
	mux.Handle("POST /api/donneur-ordre/offres/{id}/refuse", authed(h.RefuseOffer, perm(domain.PermissionProjectsCreate)))
	mux.Handle("POST /api/sous-traitant/offres", authed(h.SubmitOffer, perm(domain.PermissionOffersSubmit)))
	mux.Handle("GET /api/sous-traitant/offres", authed(h.MyOffers, perm(domain.PermissionOffersSubmit)))
	mux.Handle("POST /api/sous-traitant/offres/{id}/withdraw", authed(h.WithdrawOffer, perm(domain.PermissionOffersSubmit)))

	// References / Réalisations
	mux.Handle("POST /api/sous-traitant/references", authed(h.CreateReference, perm(domain.PermissionOffersSubmit)))
	mux.Handle("DELETE /api/sous-traitant/references/{id}", authed(h.DeleteReference, perm(domain.PermissionOffersSubmit)))

	// Documents / Justificatifs
	mux.Handle("POST /api/documents/upload", authed(h.UploadDocument))
	mux.Handle("GET /api/documents", authed(h.ListDocuments))
	mux.Handle("GET /api/documents/status", authed(h.DocumentStatus))
	mux.Handle("GET /api/documents/{id}/file", authed(h.DownloadDocument))
	mux.Handle("DELETE /api/documents/{id}", authed(h.DeleteDocument))

	// Messages
	mux.Handle("POST /api/messages", authed(h.SendMessage))
	mux.Handle("GET /api/messages", authed(h.Thread))
	mux.Handle("GET /api/messages/conversations", authed(h.Conversations))
	mux.Handle("POST /api/messages/read", authed(h.MarkRead))
	mux.Handle("GET /api/messages/unread-count", authed(h.UnreadCount))

	// Evaluations and contact / Évaluations et contact
	mux.Handle("POST /api/evaluations", authed(h.CreateEvaluation))
	mux.Handle("POST /api/contact", chain(h.Contact, mw.RateLimitContact))

	// Back office / Administration
	mux.Handle("GET /api/admin/users", authed(h.ListUsers, perm(domain.PermissionUsersList)))
	mux.Handle("DELETE /api/admin/users/{id}", authed(h.DeleteUser, perm(domain.PermissionUsersDelete)))
	mux.Handle("PATCH /api/admin/users/{id}/role", authed(h.UpdateUserRole, perm(domain.PermissionRolesWrite)))
	mux.Handle("GET /api/admin/stats", authed(h.Stats, perm(domain.PermissionStatsRead)))
	mux.Handle("GET /api/admin/projets", authed(h.ModerationQueue, perm(domain.PermissionProjectsModerate)))
	mux.Handle("POST /api/admin/projets/{id}/validate", authed(h.ValidateProject, perm(domain.PermissionProjectsModerate)))
	mux.Handle("POST /api/admin/projets/{id}/reject", authed(h.RejectProject, perm(domain.PermissionProjectsModerate)))
	mux.Handle("GET /api/admin/documents", authed(h.DocumentQueue, perm(domain.PermissionDocumentsVerify)))
	mux.Handle("POST /api/admin/documents/{id}/validate", authed(h.ValidateDocument, perm(domain.PermissionDocumentsVerify)))
	mux.Handle("POST /api/admin/documents/{id}/reject", authed(h.RejectDocument, perm(domain.PermissionDocumentsVerify)))

	// Global middlewares - applied in reverse order / Middlewares globaux appliqués en ordre inverse
	var handler http.Handler = mux
	handler = mw.MetricsMiddleware(handler)
	handler = mw.RateLimit(handler)
	handler = mw.SecurityHeaders(handler)
	handler = mw.Cors(handler)
	handler = Timeout(30 * time.Second)(handler)
	handler = Logging(handler)
	handler = RequestID(handler) // first, every later middleware logs the ID

	return handler, mw.Stop
}

// chain applies middleware to HTTP handler / Applique les middlewares au gestionnaire HTTP
func chain(f http.HandlerFunc, middlewares ...func(http.Handler) http.Handler) http.Handler {
	var handler http.Handler = f

	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}

	return handler
}

// uploadsMount turns the configured public URL into a mux path such as "/uploads/".
func uploadsMount(publicURL string) string {
	if u, err := url.Parse(publicURL); err == nil && u.Host != "" {
		publicURL = u.Path
	}
	mount := "/" + strings.Trim(publicURL, "/")
	if mount == "/" {
		mount = "/uploads"
	}
	return mount + "/"
}

// uploadsHandler serves public images from the store, without directory listings.
func uploadsHandler(fs afero.Fs, publicURL string) http.Handler {
	files := http.StripPrefix(strings.TrimSuffix(uploadsMount(publicURL), "/"), http.FileServer(relativeFS{afero.NewHttpFs(fs)}))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})
}

// relativeFS opens keys without the leading slash added by http.FileServer,
// storage writes them relative to its root.
type relativeFS struct {
	http.FileSystem
}

func (f relativeFS) Open(name string) (http.File, error) {
	return f.FileSystem.Open(strings.TrimPrefix(name, "/"))
}
