// Package schema creates the tables the service needs, in dependency order.
package schema

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	oauthrepo "github.com/slava-lu/auth-app-backend/internal/oauth/repo"
	rolerepo "github.com/slava-lu/auth-app-backend/internal/role/repo"
	settingrepo "github.com/slava-lu/auth-app-backend/internal/setting/repo"
	userrepo "github.com/slava-lu/auth-app-backend/internal/user/repo"
)

type ensurer interface {
	EnsureTable(ctx context.Context) error
}

// Ensure creates every table that does not exist yet. It is idempotent.
func Ensure(ctx context.Context, db *sqlx.DB) error {
	steps := []struct {
		name string
		repo ensurer
	}{
		{"accounts", userrepo.NewUserRepo(db)},
		{"roles", rolerepo.NewRoleRepo(db)},
		{"settings", settingrepo.NewRepo(db)},
		{"oauth", oauthrepo.NewIdentityRepo(db)},
	}
	for _, s := range steps {
		if err := s.repo.EnsureTable(ctx); err != nil {
			return fmt.Errorf("ensure %s tables: %w", s.name, err)
		}
	}
	return nil
}
