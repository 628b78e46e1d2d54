package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/events"
	"github.com/BakiChantier/chantier-direct-sub000/internal/repository"
	"github.com/BakiChantier/chantier-direct-sub000/internal/storage"
)

// DocumentService manages compliance documents / Gère les justificatifs administratifs
type DocumentService struct {
	Deps
}

// NewDocumentService creates the document service / Crée le service des documents
func NewDocumentService(d Deps) *DocumentService {
	return &DocumentService{Deps: d}
}

// UploadInput is one document upload / Un envoi de document
type UploadInput struct {
	Type         domain.DocumentType
	OriginalName string
	ExpiresAt    *time.Time
	Body         io.Reader
}

// Verification is the aggregate state of a user's documents / État agrégé des documents
type Verification struct {
	Status  domain.VerificationStatus `json:"status"`
	Missing []domain.DocumentType     `json:"missing"`
}

// Upload stores a file and records it as PENDING / Stocke un fichier en attente de revue
func (s *DocumentService) Upload(ctx context.Context, owner *domain.User, in UploadInput) (*domain.Document, error) {
	if !in.Type.IsValid() {
		return nil, invalid("type", "unknown document type")
	}
	if in.Body == nil {
		return nil, invalid("file", "is required")
	}
	if in.ExpiresAt != nil && in.ExpiresAt.Before(s.now()) {
		return nil, invalid("expires_at", "must be in the future")
	}

	obj, err := storage.Put(ctx, s.Storage, uploadKey("documents", owner.ID), in.Body,
		storageLimit(s.Config.Storage.MaxDocumentBytes, 10<<20), storage.DocumentTypes)
	if err != nil {
		return nil, err
	}

	name := path.Base(strings.ReplaceAll(in.OriginalName, "\\", "/"))
	if name == "." || name == "/" {
		name = ""
	}
	doc, err := s.Repos.Documents.Create(ctx, &domain.Document{
		UserID:       owner.ID,
		Type:         in.Type,
		FileKey:      obj.Key,
		OriginalName: name,
		MimeType:     obj.MimeType,
		Size:         obj.Size,
		Status:       domain.DocumentPending,
		ExpiresAt:    in.ExpiresAt,
		UploadedAt:   s.now(),
	})
	if err != nil {
		s.discard(ctx, obj)
		return nil, internal("failed to record document", err, "user_id", owner.ID)
	}

	s.Metrics.RecordDocumentUploaded(string(doc.Type))
	s.publish(ctx, events.DocumentUploaded, map[string]any{
		"document_id": doc.ID, "user_id": owner.ID, "type": doc.Type,
	})
	slog.Info("document uploaded", "document_id", doc.ID, "user_id", owner.ID, "type", doc.Type)
	return doc, nil
}

// List returns the documents of owner / Retourne les documents de l'utilisateur
func (s *DocumentService) List(ctx context.Context, owner *domain.User) ([]domain.Document, Verification, error) {
	docs, err := s.Repos.Documents.ListByUser(ctx, owner.ID)
	if err != nil {
		return nil, Verification{}, internal("failed to list documents", err, "user_id", owner.ID)
	}
	return docs, s.aggregate(owner.Role, docs), nil
}

// VerificationOf computes the aggregate status of a user / Calcule le statut agrégé
func (s *DocumentService) VerificationOf(ctx context.Context, user *domain.User) (Verification, error) {
	_, v, err := s.List(ctx, user)
	return v, err
}

func (s *DocumentService) aggregate(role domain.UserRole, docs []domain.Document) Verification {
	now := s.now()
	return Verification{
		Status:  domain.AggregateVerification(role, docs, now),
		Missing: domain.MissingDocuments(role, docs, now),
	}
}

// requireVerified fails with ErrNotVerified unless user is VERIFIED / Exige un compte vérifié
func (s *DocumentService) requireVerified(ctx context.Context, user *domain.User) error {
	v, err := s.VerificationOf(ctx, user)
	if err != nil {
		return err
	}
	if v.Status != domain.VerificationVerified {
		return ErrNotVerified
	}
	return nil
}

// Delete removes an own document still PENDING or REJECTED / Supprime un document en attente ou refusé
func (s *DocumentService) Delete(ctx context.Context, owner *domain.User, id int64) error {
	doc, err := s.Repos.Documents.GetByID(ctx, id)
	if err != nil {
		return notFound(err, "document")
	}
	if doc.UserID != owner.ID {
		return ErrForbidden
	}
	if doc.Status != domain.DocumentPending && doc.Status != domain.DocumentRejected {
		return ErrInvalidTransition
	}

	if err := s.Repos.Documents.Delete(ctx, id); err != nil {
		return internal("failed to delete document", err, "document_id", id)
	}
	if err := s.Storage.Delete(ctx, doc.FileKey); err != nil {
		slog.Warn("failed to delete document file", "key", doc.FileKey, "err", err)
	}
	return nil
}

// Open streams a stored document to its owner or a reviewer / Ouvre un document pour son propriétaire ou un modérateur
func (s *DocumentService) Open(ctx context.Context, viewer *domain.User, canReview bool, id int64) (*domain.Document, io.ReadCloser, error) {
	doc, err := s.Repos.Documents.GetByID(ctx, id)
	if err != nil {
		return nil, nil, notFound(err, "document")
	}
	if doc.UserID != viewer.ID && !canReview {
		return nil, nil, ErrForbidden
	}
	rc, err := s.Storage.Open(ctx, doc.FileKey)
	if err != nil {
		return nil, nil, internal("failed to open document file", err, "key", doc.FileKey)
	}
	return doc, rc, nil
}

// Queue lists documents by review status / Liste les documents par statut de revue
func (s *DocumentService) Queue(ctx context.Context, status domain.DocumentStatus, page domain.Page) ([]*domain.Document, int, error) {
	if status == "" {
		status = domain.DocumentPending
	}
	if !status.IsValid() {
		return nil, 0, invalid("status", "unknown document status")
	}
	docs, total, err := s.Repos.Documents.ListByStatus(ctx, status, page)
	if err != nil {
		return nil, 0, internal("failed to list documents", err, "status", status)
	}
	return docs, total, nil
}

// Validate approves a pending document / Valide un document en attente
// expiresAt overrides the date given at upload when set.
func (s *DocumentService) Validate(ctx context.Context, reviewerID, id int64, expiresAt *time.Time) (*domain.Document, error) {
	doc, err := s.Repos.Documents.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "document")
	}
	if expiresAt == nil {
		expiresAt = doc.ExpiresAt
	}
	if expiresAt != nil && expiresAt.Before(s.now()) {
		return nil, invalid("expires_at", "must be in the future")
	}
	return s.review(ctx, reviewerID, doc, domain.DocumentValidated, "", expiresAt)
}

// Reject refuses a pending document with a reason / Refuse un document avec un motif
func (s *DocumentService) Reject(ctx context.Context, reviewerID, id int64, reason string) (*domain.Document, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("reason", "is required")
	}
	doc, err := s.Repos.Documents.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "document")
	}
	return s.review(ctx, reviewerID, doc, domain.DocumentRejected, reason, doc.ExpiresAt)
}

func (s *DocumentService) review(ctx context.Context, reviewerID int64, doc *domain.Document, status domain.DocumentStatus, reason string, expiresAt *time.Time) (*domain.Document, error) {
	if doc.Status != domain.DocumentPending {
		return nil, ErrInvalidTransition
	}
	if err := s.Repos.Documents.Review(ctx, doc.ID, status, reason, expiresAt, reviewerID); err != nil {
		if errors.Is(err, repository.ErrNoRecord) {
			return nil, ErrNotFound
		}
		return nil, internal("failed to review document", err, "document_id", doc.ID)
	}

	updated, err := s.Repos.Documents.GetByID(ctx, doc.ID)
	if err != nil {
		return nil, internal("failed to reload document", err, "document_id", doc.ID)
	}

	s.Metrics.RecordDocumentReview(string(status), 1)
	s.publish(ctx, events.DocumentReviewed, map[string]any{
		"document_id": doc.ID, "user_id": doc.UserID, "type": doc.Type, "status": status, "reviewer_id": reviewerID,
	})
	s.notify(ctx, MailDocumentReviewed, doc.UserID, MailData{
		"Type":      string(doc.Type),
		"Name":      doc.OriginalName,
		"Validated": status == domain.DocumentValidated,
		"Reason":    reason,
		"ExpiresAt": formatDate(updated.ExpiresAt),
		"URL":       s.link("documents"),
	})
	slog.Info("document reviewed", "document_id", doc.ID, "status", status, "reviewer_id", reviewerID)
	return updated, nil
}

// ExpireDue flips validated documents past their expiry / Expire les documents validés échus
func (s *DocumentService) ExpireDue(ctx context.Context) (int, error) {
	expired, err := s.Repos.Documents.ExpireValidated(ctx, s.now())
	if err != nil {
		return 0, internal("failed to expire documents", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	s.Metrics.RecordDocumentReview(string(domain.DocumentExpired), len(expired))
	for _, doc := range expired {
		s.publish(ctx, events.DocumentExpired, map[string]any{
			"document_id": doc.ID, "user_id": doc.UserID, "type": doc.Type,
		})
		s.notify(ctx, MailDocumentExpired, doc.UserID, MailData{
			"Type":      string(doc.Type),
			"Name":      doc.OriginalName,
			"ExpiresAt": formatDate(doc.ExpiresAt),
			"URL":       s.link("documents"),
		})
	}
	slog.Info("expired documents", "count", len(expired))
	return len(expired), nil
}
