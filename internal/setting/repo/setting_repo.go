package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/slava-lu/auth-app-backend/internal/setting/entity"
)

// Repo reads and seeds the general_config table.
type Repo struct {
	db *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// EnsureTable creates general_config when to_regclass does not find it.
func (r *Repo) EnsureTable(ctx context.Context) error {
	var tblName sql.NullString
	if err := r.db.QueryRowContext(ctx, "SELECT to_regclass('public.general_config')").Scan(&tblName); err != nil {
		return err
	}
	if tblName.Valid {
		return nil
	}
	const createTable = `CREATE TABLE general_config (
		name varchar(64) PRIMARY KEY,
		value jsonb NOT NULL DEFAULT '{}'::jsonb,
		updated_at timestamptz NOT NULL DEFAULT NOW()
	)`
	_, err := r.db.ExecContext(ctx, createTable)
	return err
}

// List returns every option.
func (r *Repo) List(ctx context.Context) ([]entity.Option, error) {
	var out []entity.Option
	if err := r.db.SelectContext(ctx, &out, `SELECT name, value FROM general_config ORDER BY name`); err != nil {
		return nil, err
	}
	return out, nil
}

// Insert adds an option unless one with the same name exists.
func (r *Repo) Insert(ctx context.Context, o entity.Option) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO general_config (name, value) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		o.Name, []byte(o.Value))
	return err
}
