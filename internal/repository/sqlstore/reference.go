package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
)

var _ ports.ReferenceRepository = (*referenceRepository)(nil)

var referenceColumns = []string{"id", "user_id", "title", "description", "year", "city", "image_key", "image_url", "created_at"}

type referenceRepository struct {
	store
}

// NewReferenceRepository creates reference repository / Crée le repository des références
func NewReferenceRepository(dbtx ports.DBTX, d Dialect) ports.ReferenceRepository {
	return &referenceRepository{store: newStore(dbtx, d)}
}

func scanReference(row scanner) (*domain.Reference, error) {
	ref := &domain.Reference{}
	err := row.Scan(&ref.ID, &ref.UserID, &ref.Title, &ref.Description, &ref.Year, &ref.City, &ref.ImageKey, &ref.ImageURL, &ref.CreatedAt)
	if err != nil {
		return nil, err
	}
	return ref, nil
}

func (r *referenceRepository) Create(ctx context.Context, ref *domain.Reference) (*domain.Reference, error) {
	id, err := r.insert(ctx, r.qb().Insert("company_references").
		Columns("user_id", "title", "description", "year", "city", "image_key", "image_url", "created_at").
		Values(ref.UserID, ref.Title, ref.Description, ref.Year, ref.City, ref.ImageKey, ref.ImageURL, time.Now().UTC()))
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *referenceRepository) GetByID(ctx context.Context, id int64) (*domain.Reference, error) {
	query, args, err := r.qb().Select(referenceColumns...).From("company_references").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	ref, err := scanReference(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, r.handle(err)
	}
	return ref, nil
}

func (r *referenceRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Reference, error) {
	rows, err := r.query(ctx, r.qb().Select(referenceColumns...).From("company_references").
		Where(sq.Eq{"user_id": userID}).OrderBy("year DESC", "id DESC"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := []*domain.Reference{}
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, r.handle(err)
		}
		refs = append(refs, ref)
	}
	return refs, r.handle(rows.Err())
}

func (r *referenceRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, r.qb().Delete("company_references").Where(sq.Eq{"id": id}))
}
