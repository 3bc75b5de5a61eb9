package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/slava-lu/auth-app-backend/internal/password"
	"github.com/slava-lu/auth-app-backend/internal/role"
	rolerepo "github.com/slava-lu/auth-app-backend/internal/role/repo"
	"github.com/slava-lu/auth-app-backend/internal/user/entity"
	userrepo "github.com/slava-lu/auth-app-backend/internal/user/repo"
	"github.com/slava-lu/auth-app-backend/pkg/database"
	"github.com/slava-lu/auth-app-backend/pkg/utilities"
)

// AdminConfig describes the first account.
type AdminConfig struct {
	Email     string   `env:"ADMIN_EMAIL"`
	Password  string   `env:"ADMIN_PASSWORD"`
	FirstName string   `env:"ADMIN_FIRST_NAME" envDefault:"Admin"`
	LastName  string   `env:"ADMIN_LAST_NAME"`
	Roles     []string `env:"ADMIN_ROLES" envSeparator:"," envDefault:"superadmin,admin,impersonation"`
}

func roleIDs(names []string) ([]int64, error) {
	byName := map[string]int64{}
	for _, r := range role.Builtin {
		byName[r.Name] = r.ID
	}
	var ids []int64
	for _, n := range names {
		id, ok := byName[strings.TrimSpace(n)]
		if !ok {
			return nil, fmt.Errorf("unknown role %q", n)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SeedAdmin creates the admin account with its roles unless the email is
// taken. It reports whether an account was created.
func SeedAdmin(ctx context.Context, db *sqlx.DB, hasher *password.Hasher, c AdminConfig) (bool, error) {
	if err := password.Validate(c.Password); err != nil {
		return false, fmt.Errorf("ADMIN_PASSWORD: %w", err)
	}
	ids, err := roleIDs(c.Roles)
	if err != nil {
		return false, err
	}
	email := strings.ToLower(strings.TrimSpace(c.Email))
	exists, err := userrepo.NewUserRepo(db).EmailExists(ctx, email)
	if err != nil || exists {
		return false, err
	}
	digest, salt, err := hasher.HashNew(c.Password)
	if err != nil {
		return false, err
	}
	hashCheck, err := utilities.RandomHex(16)
	if err != nil {
		return false, err
	}
	err = database.Transact(ctx, db, func(tx *sqlx.Tx) error {
		_, userID, err := userrepo.NewUserRepo(tx).CreateAccount(ctx, entity.NewAccount{
			Email:            email,
			PasswordHash:     digest,
			Salt:             salt,
			HashCheck:        hashCheck,
			FirstName:        c.FirstName,
			LastName:         c.LastName,
			IsCreatedLocally: true,
			IsEmailVerified:  true,
			Provider:         entity.ProviderLocal,
		})
		if err != nil {
			return err
		}
		roles := rolerepo.NewRoleRepo(tx)
		for _, id := range ids {
			if err := roles.AddUserRole(ctx, userID, id); err != nil {
				return err
			}
		}
		return nil
	})
	return err == nil, err
}
