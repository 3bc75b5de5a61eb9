package twofa

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	rolerepo "github.com/slava-lu/auth-app-backend/internal/role/repo"
	"github.com/slava-lu/auth-app-backend/internal/user/entity"
	userrepo "github.com/slava-lu/auth-app-backend/internal/user/repo"
	"github.com/slava-lu/auth-app-backend/pkg/database"
)

// Store is the persistence the 2FA flows need.
type Store interface {
	GetPrincipal(ctx context.Context, accountID int64) (*entity.Principal, error)
	GetPrincipalByTwoFaCode(ctx context.Context, code string) (*entity.Principal, error)
	UserInfoByAccountID(ctx context.Context, accountID int64) (*entity.UserInfo, error)
	SetTwoFaPendingSecret(ctx context.Context, accountID int64, secret string) error
	SetTwoFaChallenge(ctx context.Context, accountID int64, code *string, at *time.Time) error
	EnableTwoFa(ctx context.Context, accountID int64, secret string, step int64) error
	UseTwoFaStep(ctx context.Context, accountID, step int64) (bool, error)
	DisableTwoFa(ctx context.Context, accountID int64) error
	AddUserRole(ctx context.Context, userID, roleID int64) error
	RemoveUserRole(ctx context.Context, userID, roleID int64) error

	InTx(ctx context.Context, fn func(Store) error) error
}

type sqlStore struct {
	*userrepo.UserRepo
	*rolerepo.RoleRepo
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) Store {
	return &sqlStore{UserRepo: userrepo.NewUserRepo(db), RoleRepo: rolerepo.NewRoleRepo(db), db: db}
}

func (s *sqlStore) InTx(ctx context.Context, fn func(Store) error) error {
	return database.Transact(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&sqlStore{UserRepo: s.UserRepo.WithTx(tx), RoleRepo: s.RoleRepo.WithTx(tx), db: s.db})
	})
}
