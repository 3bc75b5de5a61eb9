package user

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	rolerepo "github.com/slava-lu/auth-app-backend/internal/role/repo"
	"github.com/slava-lu/auth-app-backend/internal/user/entity"
	userrepo "github.com/slava-lu/auth-app-backend/internal/user/repo"
	"github.com/slava-lu/auth-app-backend/pkg/database"
)

// Store is the persistence the account flows need.
type Store interface {
	GetPrincipal(ctx context.Context, accountID int64) (*entity.Principal, error)
	GetPrincipalByEmail(ctx context.Context, email string) (*entity.Principal, error)
	GetPrincipalByLogin(ctx context.Context, email, mobile string) (*entity.Principal, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	MobileExists(ctx context.Context, mobile string) (bool, error)
	CreateAccount(ctx context.Context, in entity.NewAccount) (accountID, userID int64, err error)
	UserInfoByAccountID(ctx context.Context, accountID int64) (*entity.UserInfo, error)
	UserInfoByUserID(ctx context.Context, userID int64) (*entity.UserInfo, error)

	SetHashCheck(ctx context.Context, accountID int64, hashCheck string) error
	TouchLogin(ctx context.Context, accountID int64, provider string, at time.Time) error
	SetTwoFaChallenge(ctx context.Context, accountID int64, code *string, at *time.Time) error
	SetPassword(ctx context.Context, accountID int64, hash, salt string, at time.Time) error
	SetPasswordResetCode(ctx context.Context, accountID int64, code string, at time.Time) error
	MarkEmailVerified(ctx context.Context, accountID int64) error
	SoftDelete(ctx context.Context, accountID int64, restoreCode string, at time.Time) error
	Restore(ctx context.Context, accountID int64, at time.Time) error

	// InTx runs fn against a Store bound to one transaction.
	InTx(ctx context.Context, fn func(Store) error) error
}

// SQLStore is the Postgres Store.
type SQLStore struct {
	*userrepo.UserRepo
	*rolerepo.RoleRepo
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{UserRepo: userrepo.NewUserRepo(db), RoleRepo: rolerepo.NewRoleRepo(db), db: db}
}

func (s *SQLStore) InTx(ctx context.Context, fn func(Store) error) error {
	return database.Transact(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&SQLStore{UserRepo: s.UserRepo.WithTx(tx), RoleRepo: s.RoleRepo.WithTx(tx), db: s.db})
	})
}
