package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
)

var _ ports.OfferRepository = (*offerRepository)(nil)

var offerColumns = []string{
	"o.id", "o.project_id", "o.subcontractor_id", "o.amount", "o.delay_days", "o.message", "o.status",
	"o.created_at", "o.updated_at", "p.title", "p.status", "u.company_name",
}

type offerRepository struct {
	store
}

// NewOfferRepository creates offer repository / Crée le repository des offres
func NewOfferRepository(dbtx ports.DBTX, d Dialect) ports.OfferRepository {
	return &offerRepository{store: newStore(dbtx, d)}
}

// WithTx returns repository with transaction / Retourne le repository avec transaction
func (r *offerRepository) WithTx(dbtx ports.DBTX) ports.OfferRepository {
	return &offerRepository{store: newStore(dbtx, r.dialect)}
}

func (r *offerRepository) selectOffers() sq.SelectBuilder {
	return r.qb().Select(offerColumns...).From("offres o").
		Join("projets p ON p.id = o.project_id").
		Join("users u ON u.id = o.subcontractor_id")
}

func scanOffer(row scanner) (*domain.Offre, error) {
	o := &domain.Offre{}
	err := row.Scan(
		&o.ID, &o.ProjectID, &o.SubcontractorID, &o.Amount, &o.DelayDays, &o.Message, &o.Status,
		&o.CreatedAt, &o.UpdatedAt, &o.ProjectTitle, &o.ProjectStatus, &o.CompanyName,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *offerRepository) list(ctx context.Context, b sq.SelectBuilder) ([]*domain.Offre, error) {
	rows, err := r.query(ctx, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offers := []*domain.Offre{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, r.handle(err)
		}
		offers = append(offers, o)
	}
	return offers, r.handle(rows.Err())
}

// Create inserts a pending offer / Insère une offre en attente
func (r *offerRepository) Create(ctx context.Context, o *domain.Offre) (*domain.Offre, error) {
	now := time.Now().UTC()
	id, err := r.insert(ctx, r.qb().Insert("offres").
		Columns("project_id", "subcontractor_id", "amount", "delay_days", "message", "status", "created_at", "updated_at").
		Values(o.ProjectID, o.SubcontractorID, o.Amount, o.DelayDays, o.Message, string(domain.OfferPending), now, now))
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByID retrieves an offer / Récupère une offre
func (r *offerRepository) GetByID(ctx context.Context, id int64) (*domain.Offre, error) {
	query, args, err := r.selectOffers().Where(sq.Eq{"o.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	o, err := scanOffer(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, r.handle(err)
	}
	return o, nil
}

// ListByProject returns offers on a project, cheapest first / Offres d'un chantier, la moins chère d'abord
func (r *offerRepository) ListByProject(ctx context.Context, projectID int64) ([]*domain.Offre, error) {
	return r.list(ctx, r.selectOffers().Where(sq.Eq{"o.project_id": projectID}).OrderBy("o.amount", "o.id"))
}

// ListBySubcontractor returns offers of a bidder, newest first / Offres d'un sous-traitant
func (r *offerRepository) ListBySubcontractor(ctx context.Context, subcontractorID int64) ([]*domain.Offre, error) {
	return r.list(ctx, r.selectOffers().Where(sq.Eq{"o.subcontractor_id": subcontractorID}).OrderBy("o.created_at DESC", "o.id DESC"))
}

// FindActive returns the non-withdrawn offer of a bidder / Offre non retirée d'un sous-traitant
func (r *offerRepository) FindActive(ctx context.Context, projectID, subcontractorID int64) (*domain.Offre, error) {
	query, args, err := r.selectOffers().
		Where(sq.Eq{"o.project_id": projectID, "o.subcontractor_id": subcontractorID}).
		Where(sq.NotEq{"o.status": string(domain.OfferWithdrawn)}).
		Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	o, err := scanOffer(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, r.handle(err)
	}
	return o, nil
}

// UpdateStatus moves one offer from one status to another / Change le statut d'une offre de from vers to
func (r *offerRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.OfferStatus) error {
	return r.execOne(ctx, r.qb().Update("offres").
		Set("status", string(to)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "status": string(from)}))
}

// RefusePending refuses every pending offer except one / Refuse les offres en attente sauf une
func (r *offerRepository) RefusePending(ctx context.Context, projectID, exceptID int64) (int64, error) {
	return r.exec(ctx, r.qb().Update("offres").
		Set("status", string(domain.OfferRefused)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"project_id": projectID, "status": string(domain.OfferPending)}).
		Where(sq.NotEq{"id": exceptID}))
}

// CountByStatus groups offers by status / Compte par statut
func (r *offerRepository) CountByStatus(ctx context.Context) (map[domain.OfferStatus]int, error) {
	return countBy[domain.OfferStatus](ctx, r.store, r.qb().Select("status", "COUNT(*)").From("offres").GroupBy("status"))
}
