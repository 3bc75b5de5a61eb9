package admin

import (
	"context"

	"github.com/jmoiron/sqlx"

	rolerepo "github.com/slava-lu/auth-app-backend/internal/role/repo"
	"github.com/slava-lu/auth-app-backend/internal/user/entity"
	userrepo "github.com/slava-lu/auth-app-backend/internal/user/repo"
	"github.com/slava-lu/auth-app-backend/pkg/database"
)

// Store is the persistence admin user management needs.
type Store interface {
	ListUsers(ctx context.Context, search string, limit, offset int) ([]entity.UserListItem, error)
	CountUsers(ctx context.Context, search string) (int, error)
	ListOwn(ctx context.Context, accountID int64) ([]entity.UserListItem, error)
	GetUserDetailed(ctx context.Context, accountID int64) (*entity.UserDetailed, error)
	UserIDByAccountID(ctx context.Context, accountID int64) (int64, error)
	RoleIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	AddUserRole(ctx context.Context, userID, roleID int64) error
	RemoveUserRole(ctx context.Context, userID, roleID int64) error
	SetBanned(ctx context.Context, accountID int64, banned bool) error
	SetPasswordChangeRequired(ctx context.Context, accountID int64, required bool) error
	SetHashCheck(ctx context.Context, accountID int64, hashCheck string) error

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
