package sqlstore

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
)

var _ ports.EvaluationRepository = (*evaluationRepository)(nil)

type evaluationRepository struct {
	store
}

// NewEvaluationRepository creates evaluation repository / Crée le repository des évaluations
func NewEvaluationRepository(dbtx ports.DBTX, d Dialect) ports.EvaluationRepository {
	return &evaluationRepository{store: newStore(dbtx, d)}
}

func (r *evaluationRepository) Create(ctx context.Context, e *domain.Evaluation) (*domain.Evaluation, error) {
	now := time.Now().UTC()
	id, err := r.insert(ctx, r.qb().Insert("evaluations").
		Columns("project_id", "evaluator_id", "evaluated_id", "rating", "comment", "created_at").
		Values(e.ProjectID, e.EvaluatorID, e.EvaluatedID, e.Rating, e.Comment, now))
	if err != nil {
		return nil, err
	}
	out := *e
	out.ID = id
	out.CreatedAt = now
	return &out, nil
}

func (r *evaluationRepository) ListForUser(ctx context.Context, userID int64) ([]*domain.Evaluation, error) {
	rows, err := r.query(ctx, r.qb().
		Select("id", "project_id", "evaluator_id", "evaluated_id", "rating", "comment", "created_at").
		From("evaluations").
		Where(sq.Eq{"evaluated_id": userID}).
		OrderBy("created_at DESC", "id DESC"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	evals := []*domain.Evaluation{}
	for rows.Next() {
		e := &domain.Evaluation{}
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.EvaluatorID, &e.EvaluatedID, &e.Rating, &e.Comment, &e.CreatedAt); err != nil {
			return nil, r.handle(err)
		}
		evals = append(evals, e)
	}
	return evals, r.handle(rows.Err())
}

func (r *evaluationRepository) Summary(ctx context.Context, userID int64) (domain.RatingSummary, error) {
	var avg sql.NullFloat64
	var s domain.RatingSummary
	err := r.queryRow(ctx, r.qb().Select("AVG(rating)", "COUNT(*)").From("evaluations").
		Where(sq.Eq{"evaluated_id": userID}), &avg, &s.Count)
	if err != nil {
		return s, err
	}
	s.Average = avg.Float64
	return s, nil
}
