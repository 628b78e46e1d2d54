package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
)

var _ ports.UserRepository = (*userRepository)(nil)

var userColumns = []string{
	"id", "email", "password", "role",
	"company_name", "siret", "phone", "city", "trades", "description",
	"email_verified", "failed_login_attempts", "locked_until",
	"created_at", "updated_at",
}

// userRepository implements UserRepository / Implémente UserRepository
type userRepository struct {
	store
}

// NewUserRepository creates user repository / Crée le repository utilisateur
func NewUserRepository(dbtx ports.DBTX, d Dialect) ports.UserRepository {
	return &userRepository{store: newStore(dbtx, d)}
}

// WithTx returns repository with transaction / Retourne le repository avec transaction
func (r *userRepository) WithTx(dbtx ports.DBTX) ports.AccountSecurityRepository {
	return &userRepository{store: newStore(dbtx, r.dialect)}
}

func scanUser(row scanner) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Password,
		&u.Role,
		&u.Profile.CompanyName,
		&u.Profile.Siret,
		&u.Profile.Phone,
		&u.Profile.City,
		&u.Profile.Trades,
		&u.Profile.Description,
		&u.EmailVerified,
		&u.FailedLoginAttempts,
		&u.LockedUntil,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userRepository) getOne(ctx context.Context, where sq.Sqlizer) (*domain.User, error) {
	query, args, err := r.qb().Select(userColumns...).From("users").
		Where(where).Where("deleted_at IS NULL").ToSql()
	if err != nil {
		return nil, err
	}
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, r.handle(err)
	}
	return u, nil
}

// Create inserts new user in database / Insère un nouvel utilisateur dans la BD
func (r *userRepository) Create(ctx context.Context, email, password string, role domain.UserRole, p domain.Profile) (*domain.User, error) {
	now := time.Now().UTC()
	id, err := r.insert(ctx, r.qb().Insert("users").
		Columns("email", "password", "role", "company_name", "siret", "phone", "city", "trades", "description", "created_at", "updated_at").
		Values(email, password, string(role), p.CompanyName, p.Siret, p.Phone, p.City, p.Trades, p.Description, now, now))
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// UpdateProfile replaces the company profile / Remplace le profil entreprise
func (r *userRepository) UpdateProfile(ctx context.Context, id int64, p domain.Profile) error {
	return r.execOne(ctx, r.qb().Update("users").
		Set("company_name", p.CompanyName).
		Set("siret", p.Siret).
		Set("phone", p.Phone).
		Set("city", p.City).
		Set("trades", p.Trades).
		Set("description", p.Description).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}))
}

// GetByID retrieves user by ID / Récupère l'utilisateur par ID
func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

// GetByEmail retrieves user by email / Récupère l'utilisateur par email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, sq.Eq{"email": email})
}

// List retrieves paginated users / Récupère les utilisateurs paginés
func (r *userRepository) List(ctx context.Context, offset, limit int) ([]*domain.User, int, error) {
	total, err := r.count(ctx, r.qb().Select("COUNT(*)").From("users").Where("deleted_at IS NULL"))
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.query(ctx, r.qb().Select(userColumns...).From("users").
		Where("deleted_at IS NULL").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).Offset(uint64(offset)))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, r.handle(err)
		}
		users = append(users, u)
	}
	return users, total, r.handle(rows.Err())
}

// CountUsers returns total user count / Retourne le nombre total d'utilisateurs
func (r *userRepository) CountUsers(ctx context.Context) (int, error) {
	return r.count(ctx, r.qb().Select("COUNT(*)").From("users").Where("deleted_at IS NULL"))
}

// CountByRole groups active users by role / Compte les utilisateurs par rôle
func (r *userRepository) CountByRole(ctx context.Context) (map[domain.UserRole]int, error) {
	return countBy[domain.UserRole](ctx, r.store, r.qb().Select("role", "COUNT(*)").From("users").
		Where("deleted_at IS NULL").GroupBy("role"))
}

// EmailsByRole lists verified addresses for roles / Liste les emails vérifiés des rôles
func (r *userRepository) EmailsByRole(ctx context.Context, roles ...domain.UserRole) ([]string, error) {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	rows, err := r.query(ctx, r.qb().Select("email").From("users").
		Where(sq.Eq{"role": names, "email_verified": true}).
		Where("deleted_at IS NULL").
		OrderBy("id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, r.handle(err)
		}
		emails = append(emails, e)
	}
	return emails, r.handle(rows.Err())
}

// Delete removes user by ID / Supprime l'utilisateur par ID
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, r.qb().Delete("users").Where(sq.Eq{"id": id}))
}

// UpdateDBSendEmail updates verification token / Met à jour le token de vérification
func (r *userRepository) UpdateDBSendEmail(ctx context.Context, token string, expiresAt time.Time, id int64) error {
	return r.execOne(ctx, r.qb().Update("users").
		Set("verification_token", token).
		Set("verification_expires_at", expiresAt.UTC()).
		Where(sq.Eq{"id": id}))
}

// UpdateDBVerify marks email as verified / Marque l'email comme vérifié
func (r *userRepository) UpdateDBVerify(ctx context.Context, token string) error {
	return r.execOne(ctx, r.qb().Update("users").
		Set("email_verified", true).
		Set("verification_token", nil).
		Set("verification_expires_at", nil).
		Where(sq.Eq{"verification_token": token}).
		Where(sq.Gt{"verification_expires_at": time.Now().UTC()}))
}

// IncrementFailedAttempts increments failed login attempts / Incrémente les tentatives échouées
func (r *userRepository) IncrementFailedAttempts(ctx context.Context, userID int64) error {
	_, err := r.exec(ctx, r.qb().Update("users").
		Set("failed_login_attempts", sq.Expr("failed_login_attempts + 1")).
		Where(sq.Eq{"id": userID}))
	return err
}

// ResetFailedAttempts resets failed login attempts / Réinitialise les tentatives échouées
func (r *userRepository) ResetFailedAttempts(ctx context.Context, userID int64) error {
	_, err := r.exec(ctx, r.qb().Update("users").
		Set("failed_login_attempts", 0).
		Set("locked_until", nil).
		Where(sq.Eq{"id": userID}))
	return err
}

// LockAccount locks user account / Verrouille le compte utilisateur
func (r *userRepository) LockAccount(ctx context.Context, userID int64, until time.Time) error {
	_, err := r.exec(ctx, r.qb().Update("users").
		Set("locked_until", until.UTC()).
		Where(sq.Eq{"id": userID}))
	return err
}

// UpdateRole changes user role / Change le rôle utilisateur
func (r *userRepository) UpdateRole(ctx context.Context, userID int64, role domain.UserRole) error {
	return r.execOne(ctx, r.qb().Update("users").
		Set("role", string(role)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": userID}))
}

// GetPermissionsForRole retrieves permissions for role / Récupère les permissions du rôle
func (r *userRepository) GetPermissionsForRole(ctx context.Context, role domain.UserRole) ([]domain.Permission, error) {
	rows, err := r.query(ctx, r.qb().Select("permission").From("role_permissions").
		Where(sq.Eq{"role": string(role)}).OrderBy("permission"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var permissions []domain.Permission
	for rows.Next() {
		var perm string
		if err := rows.Scan(&perm); err != nil {
			return nil, r.handle(err)
		}
		permissions = append(permissions, domain.Permission(perm))
	}
	return permissions, r.handle(rows.Err())
}

// UserHasPermission checks if user has permission / Vérifie si l'utilisateur a la permission
func (r *userRepository) UserHasPermission(ctx context.Context, userID int64, permission domain.Permission) (bool, error) {
	n, err := r.count(ctx, r.qb().Select("COUNT(*)").From("users u").
		Join("role_permissions rp ON u.role = rp.role").
		Where(sq.Eq{"u.id": userID, "rp.permission": permission.String()}).
		Where("u.deleted_at IS NULL"))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AddPermissionToRole assigns permission to role / Assigne la permission au rôle
func (r *userRepository) AddPermissionToRole(ctx context.Context, role domain.UserRole, permission domain.Permission) error {
	_, err := r.insert(ctx, r.qb().Insert("role_permissions").
		Columns("role", "permission", "created_at").
		Values(string(role), permission.String(), time.Now().UTC()))
	return err
}

// RemovePermissionFromRole removes permission from role / Retire la permission du rôle
func (r *userRepository) RemovePermissionFromRole(ctx context.Context, role domain.UserRole, permission domain.Permission) error {
	_, err := r.exec(ctx, r.qb().Delete("role_permissions").
		Where(sq.Eq{"role": string(role), "permission": permission.String()}))
	return err
}

// SetPasswordResetToken stores password reset token / Stocke le token de réinitialisation
func (r *userRepository) SetPasswordResetToken(ctx context.Context, email string, token string, expiresAt time.Time) error {
	return r.execOne(ctx, r.qb().Update("users").
		Set("password_reset_token", token).
		Set("password_reset_expires_at", expiresAt.UTC()).
		Where(sq.Eq{"email": email}).
		Where("deleted_at IS NULL"))
}

// GetByPasswordResetToken retrieves user by reset token / Récupère l'utilisateur par token
func (r *userRepository) GetByPasswordResetToken(ctx context.Context, token string) (*domain.User, error) {
	return r.getOne(ctx, sq.And{
		sq.Eq{"password_reset_token": token},
		sq.Gt{"password_reset_expires_at": time.Now().UTC()},
	})
}

// UpdatePassword updates user password / Met à jour le mot de passe
func (r *userRepository) UpdatePassword(ctx context.Context, userID int64, hashedPassword string) error {
	return r.execOne(ctx, r.qb().Update("users").
		Set("password", hashedPassword).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": userID}).
		Where("deleted_at IS NULL"))
}

// ClearPasswordResetToken clears password reset token / Efface le token de réinitialisation
func (r *userRepository) ClearPasswordResetToken(ctx context.Context, userID int64) error {
	_, err := r.exec(ctx, r.qb().Update("users").
		Set("password_reset_token", nil).
		Set("password_reset_expires_at", nil).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": userID}))
	return err
}
