package sqlstore

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
)

var _ ports.ProjectRepository = (*projectRepository)(nil)

var projectColumns = []string{
	"p.id", "p.owner_id", "p.title", "p.description", "p.trade", "p.city", "p.postal_code",
	"p.budget_min", "p.budget_max", "p.start_date", "p.deadline",
	"p.moderation_status", "p.rejection_reason", "p.status", "p.awarded_offer_id",
	"p.created_at", "p.updated_at",
	"(SELECT COUNT(*) FROM offres o WHERE o.project_id = p.id AND o.status <> 'RETIREE') AS offer_count",
}

type projectRepository struct {
	store
}

// NewProjectRepository creates project repository / Crée le repository des chantiers
func NewProjectRepository(dbtx ports.DBTX, d Dialect) ports.ProjectRepository {
	return &projectRepository{store: newStore(dbtx, d)}
}

// WithTx returns repository with transaction / Retourne le repository avec transaction
func (r *projectRepository) WithTx(dbtx ports.DBTX) ports.ProjectRepository {
	return &projectRepository{store: newStore(dbtx, r.dialect)}
}

func scanProject(row scanner) (*domain.Projet, error) {
	p := &domain.Projet{}
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Trade, &p.City, &p.PostalCode,
		&p.BudgetMin, &p.BudgetMax, &p.StartDate, &p.Deadline,
		&p.Moderation, &p.RejectionReason, &p.Status, &p.AwardedOfferID,
		&p.CreatedAt, &p.UpdatedAt,
		&p.OfferCount,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// Create inserts a project / Insère un chantier
func (r *projectRepository) Create(ctx context.Context, p *domain.Projet) (*domain.Projet, error) {
	now := time.Now().UTC()
	id, err := r.insert(ctx, r.qb().Insert("projets").
		Columns("owner_id", "title", "description", "trade", "city", "postal_code",
			"budget_min", "budget_max", "start_date", "deadline",
			"moderation_status", "rejection_reason", "status", "created_at", "updated_at").
		Values(p.OwnerID, p.Title, p.Description, p.Trade, p.City, p.PostalCode,
			p.BudgetMin, p.BudgetMax, utcPtr(p.StartDate), utcPtr(p.Deadline),
			string(p.Moderation), p.RejectionReason, string(p.Status), now, now))
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByID retrieves a project / Récupère un chantier
func (r *projectRepository) GetByID(ctx context.Context, id int64) (*domain.Projet, error) {
	query, args, err := r.qb().Select(projectColumns...).From("projets p").Where(sq.Eq{"p.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	p, err := scanProject(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, r.handle(err)
	}
	return p, nil
}

// Update saves editable fields of an open project / Enregistre les champs d'un chantier ouvert
// Moderation is only written when p.Moderation differs from the expected from.
func (r *projectRepository) Update(ctx context.Context, p *domain.Projet, from domain.ModerationStatus) error {
	b := r.qb().Update("projets").
		Set("title", p.Title).
		Set("description", p.Description).
		Set("trade", p.Trade).
		Set("city", p.City).
		Set("postal_code", p.PostalCode).
		Set("budget_min", p.BudgetMin).
		Set("budget_max", p.BudgetMax).
		Set("start_date", utcPtr(p.StartDate)).
		Set("deadline", utcPtr(p.Deadline)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": p.ID, "status": string(domain.ProjectOpen), "moderation_status": string(from)})
	if p.Moderation != from {
		b = b.Set("moderation_status", string(p.Moderation)).Set("rejection_reason", p.RejectionReason)
	}
	return r.execOne(ctx, b)
}

// likeEscape is the same literal for every dialect, unlike a backslash
const likeEscape = "!"

var likeReplacer = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

// escapeLike makes s match literally inside a LIKE pattern / Rend s littéral dans un motif LIKE
func escapeLike(s string) string {
	return likeReplacer.Replace(s)
}

func applyProjectFilter(b sq.SelectBuilder, f domain.ProjectFilter) sq.SelectBuilder {
	if f.OwnerID != 0 {
		b = b.Where(sq.Eq{"p.owner_id": f.OwnerID})
	}
	if f.Moderation != "" {
		b = b.Where(sq.Eq{"p.moderation_status": string(f.Moderation)})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"p.status": string(f.Status)})
	}
	if f.Trade != "" {
		b = b.Where(sq.Eq{"LOWER(p.trade)": strings.ToLower(f.Trade)})
	}
	if f.City != "" {
		b = b.Where(sq.Eq{"LOWER(p.city)": strings.ToLower(f.City)})
	}
	if f.PostalCode != "" {
		b = b.Where(sq.Expr("p.postal_code LIKE ? ESCAPE '"+likeEscape+"'", escapeLike(f.PostalCode)+"%"))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		b = b.Where(sq.Or{
			sq.Expr("LOWER(p.title) LIKE ? ESCAPE '"+likeEscape+"'", pattern),
			sq.Expr("LOWER(p.description) LIKE ? ESCAPE '"+likeEscape+"'", pattern),
		})
	}
	// Budget bounds match any overlapping range / Les bornes retiennent les fourchettes qui se chevauchent
	if f.BudgetMin != nil {
		b = b.Where(sq.Or{sq.Eq{"p.budget_max": nil}, sq.GtOrEq{"p.budget_max": *f.BudgetMin}})
	}
	if f.BudgetMax != nil {
		b = b.Where(sq.Or{sq.Eq{"p.budget_min": nil}, sq.LtOrEq{"p.budget_min": *f.BudgetMax}})
	}
	if f.Since != nil {
		b = b.Where(sq.GtOrEq{"p.created_at": f.Since.UTC()})
	}
	return b
}

// List returns a filtered page and the total / Retourne une page filtrée et le total
func (r *projectRepository) List(ctx context.Context, f domain.ProjectFilter, page domain.Page) ([]*domain.Projet, int, error) {
	total, err := r.count(ctx, applyProjectFilter(r.qb().Select("COUNT(*)").From("projets p"), f))
	if err != nil {
		return nil, 0, err
	}

	b := applyProjectFilter(r.qb().Select(projectColumns...).From("projets p"), f).
		OrderBy("p.created_at DESC", "p.id DESC")
	if page.Size > 0 {
		b = b.Limit(uint64(page.Size)).Offset(uint64(page.Offset()))
	}
	rows, err := r.query(ctx, b)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	projets := []*domain.Projet{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, r.handle(err)
		}
		projets = append(projets, p)
	}
	return projets, total, r.handle(rows.Err())
}

// SetModeration moves moderation from one status to another / Change la modération de from vers to
func (r *projectRepository) SetModeration(ctx context.Context, id int64, from, to domain.ModerationStatus, reason string) error {
	return r.execOne(ctx, r.qb().Update("projets").
		Set("moderation_status", string(to)).
		Set("rejection_reason", reason).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "moderation_status": string(from)}))
}

// SetStatus moves the business status from one value to another / Change le statut métier de from vers to
func (r *projectRepository) SetStatus(ctx context.Context, id int64, from, to domain.ProjectStatus, awardedOfferID *int64) error {
	b := r.qb().Update("projets").
		Set("status", string(to)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "status": string(from)})
	if awardedOfferID != nil {
		b = b.Set("awarded_offer_id", *awardedOfferID)
	}
	return r.execOne(ctx, b)
}

// CountByModeration groups projects by moderation status / Compte par statut de modération
func (r *projectRepository) CountByModeration(ctx context.Context) (map[domain.ModerationStatus]int, error) {
	return countBy[domain.ModerationStatus](ctx, r.store,
		r.qb().Select("moderation_status", "COUNT(*)").From("projets").GroupBy("moderation_status"))
}
