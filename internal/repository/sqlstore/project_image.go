package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
)

var _ ports.ProjectImageRepository = (*projectImageRepository)(nil)

var imageColumns = []string{"id", "project_id", "file_key", "url", "mime_type", "size", "position", "created_at"}

type projectImageRepository struct {
	store
}

// NewProjectImageRepository creates image repository / Crée le repository des photos
func NewProjectImageRepository(dbtx ports.DBTX, d Dialect) ports.ProjectImageRepository {
	return &projectImageRepository{store: newStore(dbtx, d)}
}

func scanImage(row scanner) (domain.ProjectImage, error) {
	var img domain.ProjectImage
	err := row.Scan(&img.ID, &img.ProjectID, &img.FileKey, &img.URL, &img.MimeType, &img.Size, &img.Position, &img.CreatedAt)
	return img, err
}

func (r *projectImageRepository) Add(ctx context.Context, img *domain.ProjectImage) (*domain.ProjectImage, error) {
	id, err := r.insert(ctx, r.qb().Insert("project_images").
		Columns("project_id", "file_key", "url", "mime_type", "size", "position", "created_at").
		Values(img.ProjectID, img.FileKey, img.URL, img.MimeType, img.Size, img.Position, time.Now().UTC()))
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *projectImageRepository) GetByID(ctx context.Context, id int64) (*domain.ProjectImage, error) {
	query, args, err := r.qb().Select(imageColumns...).From("project_images").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	img, err := scanImage(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, r.handle(err)
	}
	return &img, nil
}

func (r *projectImageRepository) ListByProject(ctx context.Context, projectID int64) ([]domain.ProjectImage, error) {
	rows, err := r.query(ctx, r.qb().Select(imageColumns...).From("project_images").
		Where(sq.Eq{"project_id": projectID}).OrderBy("position", "id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := []domain.ProjectImage{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, r.handle(err)
		}
		images = append(images, img)
	}
	return images, r.handle(rows.Err())
}

func (r *projectImageRepository) CountByProject(ctx context.Context, projectID int64) (int, error) {
	return r.count(ctx, r.qb().Select("COUNT(*)").From("project_images").Where(sq.Eq{"project_id": projectID}))
}

func (r *projectImageRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, r.qb().Delete("project_images").Where(sq.Eq{"id": id}))
}
