package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/slava-lu/auth-app-backend/internal/oauth/entity"
)

// IdentityRepo provides data access for auth_oauth.
type IdentityRepo struct {
	db sqlx.ExtContext
}

func NewIdentityRepo(db sqlx.ExtContext) *IdentityRepo {
	return &IdentityRepo{db: db}
}

// WithTx returns a repo bound to tx.
func (r *IdentityRepo) WithTx(tx *sqlx.Tx) *IdentityRepo { return &IdentityRepo{db: tx} }

// EnsureTable creates auth_oauth. auth_accounts must exist.
func (r *IdentityRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS auth_oauth (
  id BIGSERIAL PRIMARY KEY,
  provider TEXT NOT NULL,
  account_id BIGINT NOT NULL REFERENCES auth_accounts(id) ON DELETE CASCADE,
  provider_user_id TEXT NOT NULL,
  email CITEXT NOT NULL,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  display_name TEXT NOT NULL DEFAULT '',
  picture TEXT NOT NULL DEFAULT '',
  refresh_token TEXT,
  access_token TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  UNIQUE (email, provider)
);
CREATE INDEX IF NOT EXISTS idx_auth_oauth_provider_user ON auth_oauth(provider, provider_user_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// UpsertIdentity inserts or refreshes the (email, provider) row and reports
// whether it was new. Stored tokens are only replaced by non-null ones.
func (r *IdentityRepo) UpsertIdentity(ctx context.Context, id entity.Identity) (bool, error) {
	const q = `INSERT INTO auth_oauth
		(provider, account_id, provider_user_id, email, first_name, last_name, display_name, picture, refresh_token, access_token)
		VALUES (:provider, :account_id, :provider_user_id, :email, :first_name, :last_name, :display_name, :picture, :refresh_token, :access_token)
		ON CONFLICT (email, provider) DO UPDATE SET
		  provider_user_id = EXCLUDED.provider_user_id,
		  first_name = EXCLUDED.first_name,
		  last_name = EXCLUDED.last_name,
		  display_name = EXCLUDED.display_name,
		  picture = EXCLUDED.picture,
		  refresh_token = COALESCE(EXCLUDED.refresh_token, auth_oauth.refresh_token),
		  access_token = COALESCE(EXCLUDED.access_token, auth_oauth.access_token),
		  updated_at = NOW()
		RETURNING (xmax = 0) AS inserted`
	rows, err := sqlx.NamedQueryContext(ctx, r.db, q, id)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	var inserted bool
	if rows.Next() {
		if err := rows.Scan(&inserted); err != nil {
			return false, err
		}
	}
	return inserted, rows.Err()
}

// IdentityTokens returns the stored tokens for a provider subject or sql.ErrNoRows.
func (r *IdentityRepo) IdentityTokens(ctx context.Context, provider, providerUserID string) (*entity.Tokens, error) {
	const q = `SELECT refresh_token, access_token FROM auth_oauth
		WHERE provider = $1 AND provider_user_id = $2 ORDER BY updated_at DESC LIMIT 1`
	var t entity.Tokens
	if err := sqlx.GetContext(ctx, r.db, &t, q, provider, providerUserID); err != nil {
		return nil, err
	}
	return &t, nil
}

// IdentityProfile returns the snapshot stored for email and provider or sql.ErrNoRows.
func (r *IdentityRepo) IdentityProfile(ctx context.Context, email, provider string) (*entity.Profile, error) {
	const q = `SELECT provider, first_name, last_name, display_name, picture FROM auth_oauth
		WHERE email = $1 AND provider = $2`
	var p entity.Profile
	if err := sqlx.GetContext(ctx, r.db, &p, q, email, provider); err != nil {
		return nil, err
	}
	return &p, nil
}
