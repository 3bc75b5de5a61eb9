// Package admin implements user management for administrators.
package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/role"
	"github.com/slava-lu/auth-app-backend/internal/session"
	"github.com/slava-lu/auth-app-backend/internal/user/entity"
	"github.com/slava-lu/auth-app-backend/pkg/utilities"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type Service struct {
	store  Store
	logger *zap.SugaredLogger
}

func NewService(store Store, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, logger: logger}
}

// Page selects a slice of the user listing. CurrentPage starts at 1.
type Page struct {
	CurrentPage int
	PageSize    int
	Search      string
}

func (p Page) normalize() Page {
	if p.CurrentPage < 1 {
		p.CurrentPage = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultPageSize
	}
	p.PageSize = min(p.PageSize, maxPageSize)
	p.Search = strings.TrimSpace(p.Search)
	return p
}

// Listing is one page of users plus the total match count.
type Listing struct {
	Total int                   `json:"totalNumberUsers"`
	Users []entity.UserListItem `json:"users"`
}

// List returns all matching users to super admins. Other admins only see
// their own account and a zero total.
func (s *Service) List(ctx context.Context, c *session.Claims, p Page) (*Listing, error) {
	super, err := s.isSuperAdmin(ctx, c.AccountID)
	if err != nil {
		return nil, err
	}
	if !super {
		own, err := s.store.ListOwn(ctx, c.AccountID)
		if err != nil {
			return nil, fmt.Errorf("list own: %w", err)
		}
		return &Listing{Users: nonNil(own)}, nil
	}
	p = p.normalize()
	total, err := s.store.CountUsers(ctx, p.Search)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	users, err := s.store.ListUsers(ctx, p.Search, p.PageSize, (p.CurrentPage-1)*p.PageSize)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return &Listing{Total: total, Users: nonNil(users)}, nil
}

func (s *Service) Detail(ctx context.Context, accountID int64) (*entity.UserDetailed, error) {
	d, err := s.store.GetUserDetailed(ctx, accountID)
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

// Block sets or clears the ban flag.
func (s *Service) Block(ctx context.Context, accountID int64, block bool) (*entity.UserDetailed, error) {
	if err := s.store.SetBanned(ctx, accountID, block); err != nil {
		return nil, notFound(err)
	}
	s.logger.Infow("account ban changed", "account_id", accountID, "banned", block)
	return s.Detail(ctx, accountID)
}

// ForcePasswordChange sets or clears the password change requirement.
func (s *Service) ForcePasswordChange(ctx context.Context, accountID int64, change bool) (*entity.UserDetailed, error) {
	if err := s.store.SetPasswordChangeRequired(ctx, accountID, change); err != nil {
		return nil, notFound(err)
	}
	return s.Detail(ctx, accountID)
}

// ForceRelogin ends every session of the account.
func (s *Service) ForceRelogin(ctx context.Context, accountID int64) error {
	hc, err := utilities.RandomHex(16)
	if err != nil {
		return err
	}
	if err := s.store.SetHashCheck(ctx, accountID, hc); err != nil {
		return notFound(err)
	}
	s.logger.Infow("relogin forced", "account_id", accountID)
	return nil
}

// AssignRoles makes the account's assignable roles equal to roleIDs.
// Protected roles are ignored on both sides and only super admins may
// grant or revoke super admin.
func (s *Service) AssignRoles(ctx context.Context, c *session.Claims, accountID int64, roleIDs []int64) (*entity.UserDetailed, error) {
	if roleIDs == nil {
		return nil, apperr.ErrInvalidRequest
	}
	err := s.store.InTx(ctx, func(tx Store) error {
		userID, err := tx.UserIDByAccountID(ctx, accountID)
		if err != nil {
			return notFound(err)
		}
		current, err := tx.RoleIDsForUser(ctx, userID)
		if err != nil {
			return err
		}
		add, remove := role.Diff(current, roleIDs)
		if len(add) == 0 && len(remove) == 0 {
			return apperr.ErrRolesNotChanged
		}
		if slices.Contains(add, role.SuperAdminID) || slices.Contains(remove, role.SuperAdminID) {
			super, err := s.isSuperAdmin(ctx, c.AccountID)
			if err != nil {
				return err
			}
			if !super {
				return apperr.ErrRolesMissing.With("missedRoles", []string{role.SuperAdmin})
			}
		}
		for _, id := range add {
			if err := tx.AddUserRole(ctx, userID, id); err != nil {
				return err
			}
		}
		for _, id := range remove {
			if err := tx.RemoveUserRole(ctx, userID, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("roles assigned", "account_id", accountID, "by", c.AccountID)
	return s.Detail(ctx, accountID)
}

func (s *Service) isSuperAdmin(ctx context.Context, accountID int64) (bool, error) {
	userID, err := s.store.UserIDByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lookup caller: %w", err)
	}
	ids, err := s.store.RoleIDsForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("caller roles: %w", err)
	}
	return slices.Contains(ids, role.SuperAdminID), nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrAccountNotFound
	}
	return err
}

func nonNil(items []entity.UserListItem) []entity.UserListItem {
	if items == nil {
		return []entity.UserListItem{}
	}
	return items
}
