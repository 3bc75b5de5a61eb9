package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/slava-lu/auth-app-backend/internal/profile/entity"
)

// ProfileRepo provides data access for user_profile and the user name fields.
type ProfileRepo struct {
	db sqlx.ExtContext
}

func NewProfileRepo(db sqlx.ExtContext) *ProfileRepo { return &ProfileRepo{db: db} }

// WithTx returns a repo bound to tx.
func (r *ProfileRepo) WithTx(tx *sqlx.Tx) *ProfileRepo { return &ProfileRepo{db: tx} }

// GetProfile returns the profile of userID or sql.ErrNoRows.
func (r *ProfileRepo) GetProfile(ctx context.Context, userID int64) (*entity.Profile, error) {
	const q = `SELECT up.birthday, up.bio, up.linked_in_url,
		u.first_name, u.last_name, u.middle_name, u.is_verified,
		g.name AS gender
		FROM user_profile up
		JOIN auth_users u ON u.id = up.user_id
		LEFT JOIN user_genders g ON g.id = up.gender_id
		WHERE up.user_id = $1`
	var p entity.Profile
	if err := sqlx.GetContext(ctx, r.db, &p, q, userID); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateNames sets the non-nil name fields of userID.
func (r *ProfileRepo) UpdateNames(ctx context.Context, userID int64, first, last *string) error {
	const q = `UPDATE auth_users SET
		first_name = COALESCE($2, first_name),
		last_name = COALESCE($3, last_name)
		WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, userID, first, last)
	return err
}

// UpdateProfile sets the non-nil profile fields of userID. The gender is
// only written when setGender is true; a nil genderID then clears it.
func (r *ProfileRepo) UpdateProfile(ctx context.Context, userID int64, bio, linkedInURL *string, setGender bool, genderID *int64) error {
	const q = `UPDATE user_profile SET
		bio = COALESCE($2, bio),
		linked_in_url = COALESCE($3, linked_in_url),
		gender_id = CASE WHEN $4::boolean THEN $5::bigint ELSE gender_id END
		WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, q, userID, bio, linkedInURL, setGender, genderID)
	return err
}

// GenderID resolves a gender name or returns sql.ErrNoRows.
func (r *ProfileRepo) GenderID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, r.db, &id, `SELECT id FROM user_genders WHERE name = $1`, name)
	return id, err
}
