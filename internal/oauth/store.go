package oauth

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/slava-lu/auth-app-backend/internal/oauth/entity"
	oauthrepo "github.com/slava-lu/auth-app-backend/internal/oauth/repo"
	rolerepo "github.com/slava-lu/auth-app-backend/internal/role/repo"
	userentity "github.com/slava-lu/auth-app-backend/internal/user/entity"
	userrepo "github.com/slava-lu/auth-app-backend/internal/user/repo"
	"github.com/slava-lu/auth-app-backend/pkg/database"
)

// Store is the persistence the social login flows need.
type Store interface {
	GetPrincipal(ctx context.Context, accountID int64) (*userentity.Principal, error)
	GetPrincipalByEmail(ctx context.Context, email string) (*userentity.Principal, error)
	CreateAccount(ctx context.Context, in userentity.NewAccount) (accountID, userID int64, err error)
	RoleNamesForUser(ctx context.Context, userID int64) ([]string, error)
	TouchLogin(ctx context.Context, accountID int64, provider string, at time.Time) error
	SetPasswordChangeRequired(ctx context.Context, accountID int64, required bool) error
	MarkEmailVerifiedByProvider(ctx context.Context, accountID int64) error
	UpsertIdentity(ctx context.Context, id entity.Identity) (inserted bool, err error)
	IdentityTokens(ctx context.Context, provider, providerUserID string) (*entity.Tokens, error)

	InTx(ctx context.Context, fn func(Store) error) error
}

type sqlStore struct {
	*userrepo.UserRepo
	*rolerepo.RoleRepo
	*oauthrepo.IdentityRepo
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) Store {
	return &sqlStore{
		UserRepo:     userrepo.NewUserRepo(db),
		RoleRepo:     rolerepo.NewRoleRepo(db),
		IdentityRepo: oauthrepo.NewIdentityRepo(db),
		db:           db,
	}
}

func (s *sqlStore) InTx(ctx context.Context, fn func(Store) error) error {
	return database.Transact(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&sqlStore{
			UserRepo:     s.UserRepo.WithTx(tx),
			RoleRepo:     s.RoleRepo.WithTx(tx),
			IdentityRepo: s.IdentityRepo.WithTx(tx),
			db:           s.db,
		})
	})
}
