package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/BakiChantier/chantier-direct-sub000/internal/app"
	"github.com/BakiChantier/chantier-direct-sub000/internal/config"
	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/mocks"
	"github.com/BakiChantier/chantier-direct-sub000/internal/service"
)

const (
	testPassword = "Chantier2026!"
	testSecret   = "test-secret-must-be-at-least-32-characters-long"
)

var (
	pngBytes = []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
		0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
		0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
		0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
	}
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
)

// testApp is a full HTTP stack on a temporary SQLite file / Pile HTTP complète sur un fichier SQLite temporaire
type testApp struct {
	t       *testing.T
	c       *app.Container
	handler http.Handler
	mail    *mocks.MockEmailSender
	events  *mocks.EventRecorder
	fs      afero.Fs
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{FrontendURL: "https://chantier.test"},
		Database: config.DatabaseConfig{
			Type:         "sqlite",
			DSN:          filepath.Join(t.TempDir(), "chantier.db"),
			MaxOpenConns: 1,
		},
		Auth: config.AuthConfig{
			JWTSecret:            testSecret,
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 24 * time.Hour,
			CookiePath:           "/",
		},
		Security: config.SecurityConfig{
			BcryptCost:        4,
			MaxFailedAttempts: 5,
			LockoutDuration:   15 * time.Minute,
		},
		EmailVerification: config.EmailVerification{
			TokenExpiration:   time.Hour,
			ResendCooldown:    time.Minute,
			ResendMaxAttempts: 3,
		},
		SMTP: config.SMTPConfig{Host: "localhost", Port: 1025, From: "test@example.com"},
		Storage: config.StorageConfig{
			PublicURL:        "/uploads",
			MaxDocumentBytes: 1 << 20,
			MaxImageBytes:    1 << 20,
			MaxImages:        3,
		},
		Cors:        config.CorsConfig{AllowedOrigins: []string{"https://chantier.test"}},
		RateLimiter: config.RateLimiterConfig{Enabled: false},
		Contact:     config.ContactConfig{Recipient: "contact@chantier.test"},
		Scheduler:   config.SchedulerConfig{TokenPurge: "@daily", DocumentExpiry: "@daily"},
	}
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWith(t, testConfig(t))
}

func newTestAppWith(t *testing.T, cfg *config.Config) *testApp {
	t.Helper()
	ta := &testApp{
		t:      t,
		mail:   mocks.NewMockEmailSender(),
		events: mocks.NewEventRecorder(),
		fs:     afero.NewMemMapFs(),
	}

	c, err := app.NewContainer(cfg,
		app.WithEmailSender(ta.mail),
		app.WithEventPublisher(ta.events),
		app.WithFs(ta.fs),
	)
	require.NoError(t, err)
	ta.c = c

	handler, stop := NewMux(NewHandler(c), cfg, c)
	ta.handler = handler
	t.Cleanup(func() {
		stop()
		c.Notifier.Wait()
		c.Close()
	})
	return ta
}

// do sends a JSON request with an optional bearer token / Envoie une requête JSON avec un bearer facultatif
func (ta *testApp) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ta.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ta.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	return rec
}

// upload sends a multipart form with one "file" part / Envoie un formulaire multipart avec une partie "file"
func (ta *testApp) upload(path, token string, fields map[string]string, filename string, content []byte) *httptest.ResponseRecorder {
	ta.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(ta.t, mw.WriteField(k, v))
	}
	if content != nil {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(ta.t, err)
		_, err = part.Write(content)
		require.NoError(ta.t, err)
	}
	require.NoError(ta.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	return rec
}

// member creates a verified-email account and logs it in / Crée un compte à l'email vérifié et le connecte
func (ta *testApp) member(role domain.UserRole, email, company string) (*domain.User, string) {
	ta.t.Helper()
	u, err := ta.c.UserSvc.CreateVerified(context.Background(), service.RegisterInput{
		Email:    email,
		Password: testPassword,
		Role:     role,
		Profile:  domain.Profile{CompanyName: company, City: "Lyon", Trades: "couverture, zinguerie"},
	})
	require.NoError(ta.t, err)
	return u, ta.login(email, testPassword)
}

func (ta *testApp) login(email, password string) string {
	ta.t.Helper()
	rec := ta.do(http.MethodPost, "/api/login", "", map[string]string{"email": email, "password": password})
	require.Equal(ta.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	decode(ta.t, rec, &resp)
	require.NotEmpty(ta.t, resp.AccessToken)
	return resp.AccessToken
}

// verifyDocuments marks every required document of u as validated / Valide tous les documents requis de u
func (ta *testApp) verifyDocuments(u *domain.User) {
	ta.t.Helper()
	ctx := context.Background()
	for _, typ := range domain.RequiredDocuments(u.Role) {
		doc, err := ta.c.Repos.Documents.Create(ctx, &domain.Document{
			UserID: u.ID, Type: typ, FileKey: "documents/" + string(typ), MimeType: "application/pdf",
		})
		require.NoError(ta.t, err)
		require.NoError(ta.t, ta.c.Repos.Documents.Review(ctx, doc.ID, domain.DocumentValidated, "", nil, u.ID))
	}
}

// openProject posts a project through the API and validates it / Publie un chantier via l'API et le valide
func (ta *testApp) openProject(token, title string) int64 {
	ta.t.Helper()
	rec := ta.do(http.MethodPost, "/api/donneur-ordre/projets", token, projectBody(title))
	require.Equal(ta.t, http.StatusCreated, rec.Code, rec.Body.String())
	var p struct {
		ID int64 `json:"id"`
	}
	decode(ta.t, rec, &p)
	require.NoError(ta.t, ta.c.Repos.Projects.SetModeration(context.Background(), p.ID, domain.ModerationPending, domain.ModerationValidated, ""))
	return p.ID
}

func projectBody(title string) map[string]any {
	return map[string]any{
		"titre":        title,
		"description":  "Réfection complète de la toiture d'un pavillon, environ 120 m².",
		"corps_metier": "Couverture",
		"ville":        "Lyon",
		"code_postal":  "69003",
		"budget_min":   5000,
		"budget_max":   15000,
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}
