package profile

import (
	"context"

	"github.com/jmoiron/sqlx"

	oauthentity "github.com/slava-lu/auth-app-backend/internal/oauth/entity"
	oauthrepo "github.com/slava-lu/auth-app-backend/internal/oauth/repo"
	"github.com/slava-lu/auth-app-backend/internal/profile/entity"
	profilerepo "github.com/slava-lu/auth-app-backend/internal/profile/repo"
	userentity "github.com/slava-lu/auth-app-backend/internal/user/entity"
	userrepo "github.com/slava-lu/auth-app-backend/internal/user/repo"
	"github.com/slava-lu/auth-app-backend/pkg/database"
)

// Store is the persistence the profile endpoints need.
type Store interface {
	GetProfile(ctx context.Context, userID int64) (*entity.Profile, error)
	UpdateNames(ctx context.Context, userID int64, first, last *string) error
	UpdateProfile(ctx context.Context, userID int64, bio, linkedInURL *string, setGender bool, genderID *int64) error
	GenderID(ctx context.Context, name string) (int64, error)
	UserInfoByUserID(ctx context.Context, userID int64) (*userentity.UserInfo, error)
	IdentityProfile(ctx context.Context, email, provider string) (*oauthentity.Profile, error)

	InTx(ctx context.Context, fn func(Store) error) error
}

type sqlStore struct {
	*profilerepo.ProfileRepo
	*userrepo.UserRepo
	*oauthrepo.IdentityRepo
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) Store {
	return &sqlStore{
		ProfileRepo:  profilerepo.NewProfileRepo(db),
		UserRepo:     userrepo.NewUserRepo(db),
		IdentityRepo: oauthrepo.NewIdentityRepo(db),
		db:           db,
	}
}

func (s *sqlStore) InTx(ctx context.Context, fn func(Store) error) error {
	return database.Transact(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&sqlStore{
			ProfileRepo:  s.ProfileRepo.WithTx(tx),
			UserRepo:     s.UserRepo.WithTx(tx),
			IdentityRepo: s.IdentityRepo.WithTx(tx),
			db:           s.db,
		})
	})
}
