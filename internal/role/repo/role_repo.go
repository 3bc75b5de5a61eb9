package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/slava-lu/auth-app-backend/internal/role"
)

// RoleRepo provides data access for the role catalog and user_to_role.
type RoleRepo struct {
	db sqlx.ExtContext
}

func NewRoleRepo(db sqlx.ExtContext) *RoleRepo { return &RoleRepo{db: db} }

// WithTx returns a repo bound to tx.
func (r *RoleRepo) WithTx(tx *sqlx.Tx) *RoleRepo { return &RoleRepo{db: tx} }

// EnsureTable creates the role tables if missing. auth_users must exist.
func (r *RoleRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS auth_roles (
  id BIGINT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS user_to_role (
  user_id BIGINT NOT NULL REFERENCES auth_users(id) ON DELETE CASCADE,
  role_id BIGINT NOT NULL REFERENCES auth_roles(id) ON DELETE CASCADE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  PRIMARY KEY (user_id, role_id)
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Seed upserts catalog entries.
func (r *RoleRepo) Seed(ctx context.Context, roles []role.Role) error {
	const q = `INSERT INTO auth_roles (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`
	for _, ro := range roles {
		if _, err := r.db.ExecContext(ctx, q, ro.ID, ro.Name); err != nil {
			return err
		}
	}
	return nil
}

// ListRoles returns the full catalog ordered by id.
func (r *RoleRepo) ListRoles(ctx context.Context) ([]role.Role, error) {
	var out []role.Role
	if err := sqlx.SelectContext(ctx, r.db, &out, `SELECT id, name FROM auth_roles ORDER BY id`); err != nil {
		return nil, err
	}
	return out, nil
}

// RoleNamesForUser returns the role names held by userID.
func (r *RoleRepo) RoleNamesForUser(ctx context.Context, userID int64) ([]string, error) {
	const q = `SELECT ar.name FROM user_to_role ur
		JOIN auth_roles ar ON ar.id = ur.role_id
		WHERE ur.user_id = $1 ORDER BY ar.id`
	var out []string
	if err := sqlx.SelectContext(ctx, r.db, &out, q, userID); err != nil {
		return nil, err
	}
	return out, nil
}

// RoleIDsForUser returns the role ids held by userID.
func (r *RoleRepo) RoleIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	var out []int64
	if err := sqlx.SelectContext(ctx, r.db, &out, `SELECT role_id FROM user_to_role WHERE user_id = $1 ORDER BY role_id`, userID); err != nil {
		return nil, err
	}
	return out, nil
}

// AddUserRole grants roleID to userID. Granting a held role is a no-op.
func (r *RoleRepo) AddUserRole(ctx context.Context, userID, roleID int64) error {
	const q = `INSERT INTO user_to_role (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := r.db.ExecContext(ctx, q, userID, roleID)
	return err
}

// RemoveUserRole revokes roleID from userID. Revoking a role not held is a no-op.
func (r *RoleRepo) RemoveUserRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_to_role WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return err
}
