package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
)

var _ ports.DocumentRepository = (*documentRepository)(nil)

var documentColumns = []string{
	"id", "user_id", "type", "file_key", "original_name", "mime_type", "size", "status",
	"rejection_reason", "expires_at", "reviewed_by", "reviewed_at", "uploaded_at",
}

type documentRepository struct {
	store
}

// NewDocumentRepository creates document repository / Crée le repository des justificatifs
func NewDocumentRepository(dbtx ports.DBTX, d Dialect) ports.DocumentRepository {
	return &documentRepository{store: newStore(dbtx, d)}
}

func scanDocument(row scanner) (domain.Document, error) {
	var d domain.Document
	err := row.Scan(
		&d.ID, &d.UserID, &d.Type, &d.FileKey, &d.OriginalName, &d.MimeType, &d.Size, &d.Status,
		&d.RejectionReason, &d.ExpiresAt, &d.ReviewedBy, &d.ReviewedAt, &d.UploadedAt,
	)
	return d, err
}

func (r *documentRepository) list(ctx context.Context, b sq.SelectBuilder) ([]domain.Document, error) {
	rows, err := r.query(ctx, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []domain.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, r.handle(err)
		}
		docs = append(docs, d)
	}
	return docs, r.handle(rows.Err())
}

func (r *documentRepository) Create(ctx context.Context, d *domain.Document) (*domain.Document, error) {
	uploaded := d.UploadedAt
	if uploaded.IsZero() {
		uploaded = time.Now()
	}
	id, err := r.insert(ctx, r.qb().Insert("documents").
		Columns("user_id", "type", "file_key", "original_name", "mime_type", "size", "status", "rejection_reason", "expires_at", "uploaded_at").
		Values(d.UserID, string(d.Type), d.FileKey, d.OriginalName, d.MimeType, d.Size, string(domain.DocumentPending), "", utcPtr(d.ExpiresAt), uploaded.UTC()))
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *documentRepository) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	query, args, err := r.qb().Select(documentColumns...).From("documents").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	d, err := scanDocument(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, r.handle(err)
	}
	return &d, nil
}

// ListByUser returns documents of a user, newest first / Documents d'un utilisateur
func (r *documentRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Document, error) {
	return r.list(ctx, r.qb().Select(documentColumns...).From("documents").
		Where(sq.Eq{"user_id": userID}).OrderBy("uploaded_at DESC", "id DESC"))
}

// ListByStatus returns a review queue page, oldest first / File de revue, le plus ancien d'abord
func (r *documentRepository) ListByStatus(ctx context.Context, status domain.DocumentStatus, page domain.Page) ([]*domain.Document, int, error) {
	where := sq.Eq{}
	if status != "" {
		where["status"] = string(status)
	}
	total, err := r.count(ctx, r.qb().Select("COUNT(*)").From("documents").Where(where))
	if err != nil {
		return nil, 0, err
	}

	b := r.qb().Select(documentColumns...).From("documents").Where(where).OrderBy("uploaded_at", "id")
	if page.Size > 0 {
		b = b.Limit(uint64(page.Size)).Offset(uint64(page.Offset()))
	}
	docs, err := r.list(ctx, b)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*domain.Document, len(docs))
	for i := range docs {
		out[i] = &docs[i]
	}
	return out, total, nil
}

// Review stores a moderator decision / Enregistre la décision du modérateur
func (r *documentRepository) Review(ctx context.Context, id int64, status domain.DocumentStatus, reason string, expiresAt *time.Time, reviewerID int64) error {
	b := r.qb().Update("documents").
		Set("status", string(status)).
		Set("rejection_reason", reason).
		Set("reviewed_by", reviewerID).
		Set("reviewed_at", time.Now().UTC()).
		Where(sq.Eq{"id": id})
	if expiresAt != nil {
		b = b.Set("expires_at", expiresAt.UTC())
	}
	return r.execOne(ctx, b)
}

// ExpireValidated flips validated documents past expiry / Expire les documents validés échus
func (r *documentRepository) ExpireValidated(ctx context.Context, now time.Time) ([]domain.Document, error) {
	due := sq.And{
		sq.Eq{"status": string(domain.DocumentValidated)},
		sq.NotEq{"expires_at": nil},
		sq.Lt{"expires_at": now.UTC()},
	}
	docs, err := r.list(ctx, r.qb().Select(documentColumns...).From("documents").Where(due).OrderBy("id"))
	if err != nil || len(docs) == 0 {
		return docs, err
	}

	ids := make([]int64, len(docs))
	for i := range docs {
		ids[i] = docs[i].ID
		docs[i].Status = domain.DocumentExpired
	}
	if _, err := r.exec(ctx, r.qb().Update("documents").
		Set("status", string(domain.DocumentExpired)).
		Where(sq.Eq{"id": ids})); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepository) CountByStatus(ctx context.Context, status domain.DocumentStatus) (int, error) {
	return r.count(ctx, r.qb().Select("COUNT(*)").From("documents").Where(sq.Eq{"status": string(status)}))
}

func (r *documentRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, r.qb().Delete("documents").Where(sq.Eq{"id": id}))
}
