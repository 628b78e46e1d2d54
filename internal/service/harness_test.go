package service

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/BakiChantier/chantier-direct-sub000/internal/config"
	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/metrics"
	"github.com/BakiChantier/chantier-direct-sub000/internal/mocks"
	"github.com/BakiChantier/chantier-direct-sub000/internal/repository"
	"github.com/BakiChantier/chantier-direct-sub000/internal/storage"
)

// Smallest valid PNG and PDF payloads for upload tests
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

const testPassword = "Chantier2026!"

// harness wires marketplace services on an in-memory database / Services sur une base en mémoire
type harness struct {
	t       *testing.T
	ctx     context.Context
	db      *sql.DB
	repos   repository.Repositories
	fs      afero.Fs
	mail    *mocks.MockEmailSender
	events  *mocks.EventRecorder
	metrics *metrics.Metrics
	conf    *config.Config
	deps    Deps

	documents  *DocumentService
	projects   *ProjectService
	offers     *OfferService
	moderation *ModerationService
	messages   *MessageService
	evals      *EvaluationService
	references *ReferenceService
	profiles   *ProfileService
	contact    *ContactService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := repository.OpenSQLiteMemory()
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	conf := &config.Config{
		Server: config.ServerConfig{FrontendURL: "https://chantier.test"},
		Storage: config.StorageConfig{
			PublicURL:        "/uploads",
			MaxDocumentBytes: 1 << 20,
			MaxImageBytes:    1 << 20,
			MaxImages:        3,
		},
		Contact: config.ContactConfig{Recipient: "contact@chantier.test"},
	}

	h := &harness{
		t:       t,
		ctx:     context.Background(),
		db:      db,
		repos:   repository.NewSQLiteRepositories(db),
		fs:      afero.NewMemMapFs(),
		mail:    mocks.NewMockEmailSender(),
		events:  mocks.NewEventRecorder(),
		metrics: metrics.NewMetrics(prometheus.NewRegistry()),
		conf:    conf,
	}

	notifier, err := NewNotifier(h.mail, h.metrics, conf.Server.FrontendURL)
	if err != nil {
		t.Fatalf("Failed to build notifier: %v", err)
	}
	h.deps = Deps{
		DB:       db,
		Repos:    h.repos,
		Storage:  storage.New(h.fs, conf.Storage.PublicURL),
		Events:   h.events,
		Notifier: notifier,
		Metrics:  h.metrics,
		Config:   conf,
	}

	h.documents = NewDocumentService(h.deps)
	h.projects = NewProjectService(h.deps, h.documents)
	h.offers = NewOfferService(h.deps, h.documents)
	h.moderation = NewModerationService(h.deps)
	h.messages = NewMessageService(h.deps)
	h.evals = NewEvaluationService(h.deps)
	h.references = NewReferenceService(h.deps)
	h.profiles = NewProfileService(h.deps, h.documents, h.references)
	h.contact = NewContactService(h.deps)
	return h
}

// wait flushes asynchronous emails / Attend les emails asynchrones
func (h *harness) wait() {
	h.deps.Notifier.Wait()
}

// user creates a member with a verified email / Crée un membre à l'email vérifié
func (h *harness) user(role domain.UserRole, email, company string) *domain.User {
	h.t.Helper()
	u, err := h.repos.Users.Create(h.ctx, email, "hash", role, domain.Profile{CompanyName: company})
	if err != nil {
		h.t.Fatalf("Failed to create user %s: %v", email, err)
	}
	token := "verify-" + email
	if err := h.repos.Users.UpdateDBSendEmail(h.ctx, token, time.Now().Add(time.Hour), u.ID); err != nil {
		h.t.Fatalf("Failed to set verification token: %v", err)
	}
	if err := h.repos.Users.UpdateDBVerify(h.ctx, token); err != nil {
		h.t.Fatalf("Failed to verify user: %v", err)
	}
	u, err = h.repos.Users.GetByID(h.ctx, u.ID)
	if err != nil {
		h.t.Fatalf("Failed to reload user: %v", err)
	}
	return u
}

// verified creates a member whose required documents are validated / Crée un membre aux documents validés
func (h *harness) verified(role domain.UserRole, email, company string) *domain.User {
	h.t.Helper()
	u := h.user(role, email, company)
	h.validateDocuments(u)
	return u
}

func (h *harness) validateDocuments(u *domain.User) {
	h.t.Helper()
	for _, typ := range domain.RequiredDocuments(u.Role) {
		doc, err := h.repos.Documents.Create(h.ctx, &domain.Document{
			UserID: u.ID, Type: typ, FileKey: "documents/" + string(typ), MimeType: "application/pdf",
		})
		if err != nil {
			h.t.Fatalf("Failed to create document: %v", err)
		}
		if err := h.repos.Documents.Review(h.ctx, doc.ID, domain.DocumentValidated, "", nil, u.ID); err != nil {
			h.t.Fatalf("Failed to validate document: %v", err)
		}
	}
}

func (h *harness) staff(role domain.UserRole, email string) *domain.User {
	h.t.Helper()
	return h.user(role, email, "")
}

// openProject posts and validates a project / Publie et valide un chantier
func (h *harness) openProject(owner *domain.User, title string) *domain.Projet {
	h.t.Helper()
	p, err := h.projects.Create(h.ctx, owner, validProjectInput(title))
	if err != nil {
		h.t.Fatalf("Failed to create project: %v", err)
	}
	if err := h.repos.Projects.SetModeration(h.ctx, p.ID, domain.ModerationPending, domain.ModerationValidated, ""); err != nil {
		h.t.Fatalf("Failed to validate project: %v", err)
	}
	p, err = h.repos.Projects.GetByID(h.ctx, p.ID)
	if err != nil {
		h.t.Fatalf("Failed to reload project: %v", err)
	}
	return p
}

func (h *harness) bid(sub *domain.User, p *domain.Projet, amount int64) *domain.Offre {
	h.t.Helper()
	o, err := h.offers.Submit(h.ctx, sub, OfferInput{ProjectID: p.ID, Amount: amount, DelayDays: 30, Message: "Disponible"})
	if err != nil {
		h.t.Fatalf("Failed to submit offer: %v", err)
	}
	return o
}

func validProjectInput(title string) ProjectInput {
	lo, hi := int64(500000), int64(1500000)
	return ProjectInput{
		Title:       title,
		Description: "Réfection complète de la toiture d'un pavillon, environ 120 m².",
		Trade:       "Couverture",
		City:        "Lyon",
		PostalCode:  "69003",
		BudgetMin:   &lo,
		BudgetMax:   &hi,
	}
}

func png() *bytes.Reader { return bytes.NewReader(pngBytes) }
func pdf() *bytes.Reader { return bytes.NewReader(pdfBytes) }

// newTestNotifier builds a notifier on a recording sender / Notifier sur un expéditeur factice
func newTestNotifier(t *testing.T, sender *mocks.MockEmailSender) *Notifier {
	t.Helper()
	n, err := NewNotifier(sender, nil, "https://chantier.test")
	if err != nil {
		t.Fatalf("Failed to build notifier: %v", err)
	}
	return n
}
