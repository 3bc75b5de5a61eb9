package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/slava-lu/auth-app-backend/internal/user/entity"
)

// ErrDuplicate is returned when a unique constraint on email or mobile fires.
var ErrDuplicate = errors.New("duplicate account")

// UserRepo provides data access for auth_accounts, auth_users and user_profile.
type UserRepo struct {
	db sqlx.ExtContext
}

func NewUserRepo(db sqlx.ExtContext) *UserRepo { return &UserRepo{db: db} }

// WithTx returns a repo bound to tx.
func (r *UserRepo) WithTx(tx *sqlx.Tx) *UserRepo { return &UserRepo{db: tx} }

// EnsureTable creates the account tables if not exists (idempotent).
// Role tables reference auth_users and must be created after this.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS auth_accounts (
  id BIGSERIAL PRIMARY KEY,
  email CITEXT NOT NULL UNIQUE,
  mobile_phone TEXT UNIQUE,
  password_hash TEXT NOT NULL,
  salt TEXT NOT NULL,
  hash_check TEXT NOT NULL,
  is_email_verified BOOLEAN NOT NULL DEFAULT false,
  is_mobile_verified BOOLEAN NOT NULL DEFAULT false,
  is_two_fa_enabled BOOLEAN NOT NULL DEFAULT false,
  two_fa_secret TEXT,
  two_fa_pending_secret TEXT,
  two_fa_last_step BIGINT,
  two_fa_code TEXT,
  two_fa_code_at TIMESTAMPTZ,
  is_banned BOOLEAN NOT NULL DEFAULT false,
  is_deleted BOOLEAN NOT NULL DEFAULT false,
  deleted_at TIMESTAMPTZ,
  restored_at TIMESTAMPTZ,
  account_restore_code TEXT,
  password_change_required BOOLEAN NOT NULL DEFAULT false,
  password_changed_at TIMESTAMPTZ,
  password_reset_code TEXT,
  password_reset_at TIMESTAMPTZ,
  email_verification_code TEXT,
  last_login_at TIMESTAMPTZ,
  last_login_provider TEXT,
  is_created_locally BOOLEAN NOT NULL DEFAULT true,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE auth_accounts ADD COLUMN IF NOT EXISTS two_fa_pending_secret TEXT;
ALTER TABLE auth_accounts ADD COLUMN IF NOT EXISTS two_fa_last_step BIGINT;
CREATE INDEX IF NOT EXISTS idx_auth_accounts_two_fa_code ON auth_accounts(two_fa_code) WHERE two_fa_code IS NOT NULL;
CREATE TABLE IF NOT EXISTS auth_users (
  id BIGSERIAL PRIMARY KEY,
  account_id BIGINT NOT NULL UNIQUE REFERENCES auth_accounts(id) ON DELETE CASCADE,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  middle_name TEXT,
  is_verified BOOLEAN NOT NULL DEFAULT false
);
CREATE TABLE IF NOT EXISTS user_genders (
  id BIGINT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS user_profile (
  user_id BIGINT PRIMARY KEY REFERENCES auth_users(id) ON DELETE CASCADE,
  bio TEXT,
  linked_in_url TEXT,
  birthday DATE,
  gender_id BIGINT REFERENCES user_genders(id)
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const principalCols = `a.id, a.email, a.mobile_phone, a.password_hash, a.salt, a.hash_check,
	a.is_email_verified, a.is_mobile_verified, a.is_two_fa_enabled, a.two_fa_secret, a.two_fa_pending_secret, a.two_fa_last_step, a.two_fa_code,
	a.two_fa_code_at, a.is_banned, a.is_deleted, a.deleted_at, a.restored_at, a.account_restore_code,
	a.password_change_required, a.password_changed_at, a.password_reset_code, a.password_reset_at,
	a.email_verification_code, a.last_login_at, a.last_login_provider, a.is_created_locally, a.created_at,
	u.id AS user_id`

const principalFrom = ` FROM auth_accounts a JOIN auth_users u ON u.account_id = a.id `

func (r *UserRepo) getPrincipal(ctx context.Context, where string, args ...any) (*entity.Principal, error) {
	var p entity.Principal
	if err := sqlx.GetContext(ctx, r.db, &p, `SELECT `+principalCols+principalFrom+where, args...); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPrincipal returns the account and user id for accountID or sql.ErrNoRows.
func (r *UserRepo) GetPrincipal(ctx context.Context, accountID int64) (*entity.Principal, error) {
	return r.getPrincipal(ctx, `WHERE a.id = $1`, accountID)
}

// GetPrincipalByEmail matches case-insensitively (citext).
func (r *UserRepo) GetPrincipalByEmail(ctx context.Context, email string) (*entity.Principal, error) {
	return r.getPrincipal(ctx, `WHERE a.email = $1`, email)
}

// GetPrincipalByLogin matches on email or mobile phone.
func (r *UserRepo) GetPrincipalByLogin(ctx context.Context, email, mobile string) (*entity.Principal, error) {
	return r.getPrincipal(ctx, `WHERE ($1 <> '' AND a.email = $1) OR ($2 <> '' AND a.mobile_phone = $2) LIMIT 1`, email, mobile)
}

// GetPrincipalByTwoFaCode looks up a pending second-factor challenge.
func (r *UserRepo) GetPrincipalByTwoFaCode(ctx context.Context, code string) (*entity.Principal, error) {
	return r.getPrincipal(ctx, `WHERE a.two_fa_code = $1`, code)
}

// EmailExists reports whether an account uses email.
func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var ok bool
	err := sqlx.GetContext(ctx, r.db, &ok, `SELECT EXISTS(SELECT 1 FROM auth_accounts WHERE email = $1)`, email)
	return ok, err
}

// MobileExists reports whether an account uses mobile. Empty never exists.
func (r *UserRepo) MobileExists(ctx context.Context, mobile string) (bool, error) {
	if mobile == "" {
		return false, nil
	}
	var ok bool
	err := sqlx.GetContext(ctx, r.db, &ok, `SELECT EXISTS(SELECT 1 FROM auth_accounts WHERE mobile_phone = $1)`, mobile)
	return ok, err
}

// CreateAccount inserts account, user and empty profile rows. Run it in a
// transaction; the three inserts are not atomic on their own.
func (r *UserRepo) CreateAccount(ctx context.Context, in entity.NewAccount) (accountID, userID int64, err error) {
	const qa = `INSERT INTO auth_accounts (email, mobile_phone, password_hash, salt, hash_check,
		email_verification_code, is_created_locally, is_email_verified, last_login_at, last_login_provider)
		VALUES (:email, :mobile_phone, :password_hash, :salt, :hash_check,
		:email_verification_code, :is_created_locally, :is_email_verified, NOW(), :provider) RETURNING id`
	params := map[string]any{
		"email":                   in.Email,
		"mobile_phone":            in.MobilePhone,
		"password_hash":           in.PasswordHash,
		"salt":                    in.Salt,
		"hash_check":              in.HashCheck,
		"email_verification_code": in.EmailVerificationCode,
		"is_created_locally":      in.IsCreatedLocally,
		"is_email_verified":       in.IsEmailVerified,
		"provider":                in.Provider,
	}
	rows, err := sqlx.NamedQueryContext(ctx, r.db, qa, params)
	if err != nil {
		return 0, 0, mapUnique(err)
	}
	if rows.Next() {
		err = rows.Scan(&accountID)
	} else {
		err = errors.New("no account id returned")
	}
	rows.Close()
	if err != nil {
		return 0, 0, err
	}

	const qu = `INSERT INTO auth_users (account_id, first_name, last_name) VALUES ($1, $2, $3) RETURNING id`
	if err := sqlx.GetContext(ctx, r.db, &userID, qu, accountID, in.FirstName, in.LastName); err != nil {
		return 0, 0, err
	}
	if _, err := r.db.ExecContext(ctx, `INSERT INTO user_profile (user_id) VALUES ($1)`, userID); err != nil {
		return 0, 0, err
	}
	return accountID, userID, nil
}

func mapUnique(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

const userInfoSelect = `SELECT a.email, a.is_email_verified, a.is_two_fa_enabled, a.last_login_at, a.last_login_provider,
	u.first_name, u.last_name,
	COALESCE(ARRAY_AGG(r.name ORDER BY r.id) FILTER (WHERE r.name IS NOT NULL), ARRAY[]::TEXT[]) AS roles
	FROM auth_accounts a
	JOIN auth_users u ON u.account_id = a.id
	LEFT JOIN user_to_role ur ON ur.user_id = u.id
	LEFT JOIN auth_roles r ON r.id = ur.role_id `

const userInfoGroup = ` GROUP BY a.id, u.id`

// UserInfoByAccountID returns the header projection for an account.
func (r *UserRepo) UserInfoByAccountID(ctx context.Context, accountID int64) (*entity.UserInfo, error) {
	var v entity.UserInfo
	if err := sqlx.GetContext(ctx, r.db, &v, userInfoSelect+`WHERE a.id = $1`+userInfoGroup, accountID); err != nil {
		return nil, err
	}
	return &v, nil
}

// UserInfoByUserID is the same projection keyed by user id (impersonation aware).
func (r *UserRepo) UserInfoByUserID(ctx context.Context, userID int64) (*entity.UserInfo, error) {
	var v entity.UserInfo
	if err := sqlx.GetContext(ctx, r.db, &v, userInfoSelect+`WHERE u.id = $1`+userInfoGroup, userID); err != nil {
		return nil, err
	}
	return &v, nil
}

// UserIDByAccountID returns the user id owned by accountID.
func (r *UserRepo) UserIDByAccountID(ctx context.Context, accountID int64) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, r.db, &id, `SELECT id FROM auth_users WHERE account_id = $1`, accountID)
	return id, err
}

func (r *UserRepo) exec(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetHashCheck rotates the session marker, invalidating every issued token.
func (r *UserRepo) SetHashCheck(ctx context.Context, accountID int64, hashCheck string) error {
	return r.exec(ctx, `UPDATE auth_accounts SET hash_check = $2 WHERE id = $1`, accountID, hashCheck)
}

// TouchLogin records a successful login.
func (r *UserRepo) TouchLogin(ctx context.Context, accountID int64, provider string, at time.Time) error {
	return r.exec(ctx, `UPDATE auth_accounts SET last_login_at = $2, last_login_provider = $3 WHERE id = $1`, accountID, at, provider)
}

// SetTwoFaChallenge stores or clears (nil code) the login challenge.
func (r *UserRepo) SetTwoFaChallenge(ctx context.Context, accountID int64, code *string, at *time.Time) error {
	return r.exec(ctx, `UPDATE auth_accounts SET two_fa_code = $2, two_fa_code_at = $3 WHERE id = $1`, accountID, code, at)
}

// SetTwoFaPendingSecret stores an enrollment secret next to the live one.
func (r *UserRepo) SetTwoFaPendingSecret(ctx context.Context, accountID int64, secret string) error {
	return r.exec(ctx, `UPDATE auth_accounts SET two_fa_pending_secret = $2 WHERE id = $1`, accountID, secret)
}

// EnableTwoFa promotes the pending secret when it is still secret and
// records step as used. sql.ErrNoRows means the pending secret changed.
func (r *UserRepo) EnableTwoFa(ctx context.Context, accountID int64, secret string, step int64) error {
	return r.exec(ctx, `UPDATE auth_accounts SET is_two_fa_enabled = true, two_fa_secret = two_fa_pending_secret,
		two_fa_pending_secret = NULL, two_fa_last_step = $3
		WHERE id = $1 AND two_fa_pending_secret = $2`, accountID, secret, step)
}

// UseTwoFaStep records step as the last accepted code step. It reports
// false when step is not newer than the recorded one.
func (r *UserRepo) UseTwoFaStep(ctx context.Context, accountID, step int64) (bool, error) {
	err := r.exec(ctx, `UPDATE auth_accounts SET two_fa_last_step = $2
		WHERE id = $1 AND (two_fa_last_step IS NULL OR two_fa_last_step < $2)`, accountID, step)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// DisableTwoFa clears the flag, both secrets and any pending challenge.
func (r *UserRepo) DisableTwoFa(ctx context.Context, accountID int64) error {
	return r.exec(ctx, `UPDATE auth_accounts SET is_two_fa_enabled = false, two_fa_secret = NULL,
		two_fa_pending_secret = NULL, two_fa_last_step = NULL,
		two_fa_code = NULL, two_fa_code_at = NULL WHERE id = $1`, accountID)
}

// SetPassword stores a new hash and salt and clears pending reset state.
func (r *UserRepo) SetPassword(ctx context.Context, accountID int64, hash, salt string, at time.Time) error {
	return r.exec(ctx, `UPDATE auth_accounts SET password_hash = $2, salt = $3, password_changed_at = $4,
		password_change_required = false, password_reset_code = NULL, password_reset_at = NULL WHERE id = $1`,
		accountID, hash, salt, at)
}

// SetPasswordResetCode stores a reset code with its issue time.
func (r *UserRepo) SetPasswordResetCode(ctx context.Context, accountID int64, code string, at time.Time) error {
	return r.exec(ctx, `UPDATE auth_accounts SET password_reset_code = $2, password_reset_at = $3 WHERE id = $1`, accountID, code, at)
}

// MarkEmailVerified sets the flag and consumes the verification code.
func (r *UserRepo) MarkEmailVerified(ctx context.Context, accountID int64) error {
	return r.exec(ctx, `UPDATE auth_accounts SET is_email_verified = true, email_verification_code = NULL WHERE id = $1`, accountID)
}

// SoftDelete flags the account deleted and stores the restore code.
func (r *UserRepo) SoftDelete(ctx context.Context, accountID int64, restoreCode string, at time.Time) error {
	return r.exec(ctx, `UPDATE auth_accounts SET is_deleted = true, deleted_at = $2, account_restore_code = $3 WHERE id = $1`,
		accountID, at, restoreCode)
}

// Restore clears the deleted flag and consumes the restore code.
func (r *UserRepo) Restore(ctx context.Context, accountID int64, at time.Time) error {
	return r.exec(ctx, `UPDATE auth_accounts SET is_deleted = false, account_restore_code = NULL, restored_at = $2 WHERE id = $1`,
		accountID, at)
}

// SetBanned blocks or unblocks an account.
func (r *UserRepo) SetBanned(ctx context.Context, accountID int64, banned bool) error {
	return r.exec(ctx, `UPDATE auth_accounts SET is_banned = $2 WHERE id = $1`, accountID, banned)
}

// SetPasswordChangeRequired sets or clears the forced password change flag.
func (r *UserRepo) SetPasswordChangeRequired(ctx context.Context, accountID int64, required bool) error {
	return r.exec(ctx, `UPDATE auth_accounts SET password_change_required = $2 WHERE id = $1`, accountID, required)
}

// MarkEmailVerifiedByProvider trusts a social provider's verification.
func (r *UserRepo) MarkEmailVerifiedByProvider(ctx context.Context, accountID int64) error {
	return r.exec(ctx, `UPDATE auth_accounts SET is_email_verified = true WHERE id = $1`, accountID)
}

const listSelect = `SELECT a.id, a.email, a.is_email_verified, a.is_two_fa_enabled, a.last_login_at, a.last_login_provider,
	u.first_name, u.last_name,
	COALESCE(ARRAY_AGG(r.name ORDER BY r.id) FILTER (WHERE r.name IS NOT NULL), ARRAY[]::TEXT[]) AS roles
	FROM auth_accounts a
	JOIN auth_users u ON u.account_id = a.id
	LEFT JOIN user_to_role ur ON ur.user_id = u.id
	LEFT JOIN auth_roles r ON r.id = ur.role_id `

const searchWhere = `WHERE ($1 = '' OR u.first_name ILIKE '%' || $1 || '%' OR u.last_name ILIKE '%' || $1 || '%' OR a.email ILIKE '%' || $1 || '%') `

// ListUsers pages through all accounts, optionally filtered by a search term.
func (r *UserRepo) ListUsers(ctx context.Context, search string, limit, offset int) ([]entity.UserListItem, error) {
	q := listSelect + searchWhere + `GROUP BY a.id, u.id ORDER BY a.id LIMIT $2 OFFSET $3`
	var out []entity.UserListItem
	if err := sqlx.SelectContext(ctx, r.db, &out, q, search, limit, offset); err != nil {
		return nil, err
	}
	return out, nil
}

// CountUsers counts accounts matching search.
func (r *UserRepo) CountUsers(ctx context.Context, search string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM auth_accounts a JOIN auth_users u ON u.account_id = a.id `+searchWhere, search)
	return n, err
}

// ListOwn returns the single listing row for accountID.
func (r *UserRepo) ListOwn(ctx context.Context, accountID int64) ([]entity.UserListItem, error) {
	var out []entity.UserListItem
	if err := sqlx.SelectContext(ctx, r.db, &out, listSelect+`WHERE a.id = $1 GROUP BY a.id, u.id`, accountID); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUserDetailed returns the admin detail view or sql.ErrNoRows.
func (r *UserRepo) GetUserDetailed(ctx context.Context, accountID int64) (*entity.UserDetailed, error) {
	const q = `SELECT a.id AS account_id, u.id AS user_id, a.is_banned, a.password_change_required,
		a.email, a.is_email_verified, a.is_two_fa_enabled, a.last_login_at, a.last_login_provider,
		u.first_name, u.last_name,
		COALESCE(ARRAY_AGG(r.name ORDER BY r.id) FILTER (WHERE r.name IS NOT NULL), ARRAY[]::TEXT[]) AS roles
		FROM auth_accounts a
		JOIN auth_users u ON u.account_id = a.id
		LEFT JOIN user_to_role ur ON ur.user_id = u.id
		LEFT JOIN auth_roles r ON r.id = ur.role_id
		WHERE a.id = $1 GROUP BY a.id, u.id`
	var v entity.UserDetailed
	if err := sqlx.GetContext(ctx, r.db, &v, q, accountID); err != nil {
		return nil, err
	}
	return &v, nil
}

// SeedGenders upserts the gender lookup rows.
func (r *UserRepo) SeedGenders(ctx context.Context, names map[int64]string) error {
	for id, name := range names {
		if _, err := r.db.ExecContext(ctx, `INSERT INTO user_genders (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, id, name); err != nil {
			return err
		}
	}
	return nil
}
