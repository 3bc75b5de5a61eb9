// Package setting loads the runtime options kept in general_config.
// They are read once at boot into an immutable Runtime.
package setting

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/slava-lu/auth-app-backend/internal/role"
	"github.com/slava-lu/auth-app-backend/internal/setting/entity"
)

// Runtime is the process-wide option set. Treat it as read-only.
type Runtime struct {
	OneLoginOnly          bool                    `json:"oneLoginOnly"`
	AutoLogout            entity.AutoLogoutConfig `json:"autoLogout"`
	SocialLoginNotAllowed []string                `json:"socialLoginNotAllowed"`
	RoleDependencies      role.Dependencies       `json:"roleDependencies"`
}

// SocialLoginBlocked reports whether any held role forbids social login.
func (rt *Runtime) SocialLoginBlocked(held []string) bool {
	if rt == nil {
		return false
	}
	for _, r := range rt.SocialLoginNotAllowed {
		if slices.Contains(held, r) {
			return true
		}
	}
	return false
}

// Deps returns the role dependency rules, never nil.
func (rt *Runtime) Deps() role.Dependencies {
	if rt == nil || rt.RoleDependencies == nil {
		return role.Dependencies{}
	}
	return rt.RoleDependencies
}

// Defaults is what a fresh installation starts with.
func Defaults() Runtime {
	return Runtime{
		OneLoginOnly:          false,
		AutoLogout:            entity.AutoLogoutConfig{IsEnabled: false, WarningTime: 30, Timeout: 180},
		SocialLoginNotAllowed: []string{role.Admin, role.Impersonation},
		RoleDependencies:      role.Dependencies{role.Admin: {{role.TwoFa}}},
	}
}

// Store is the persistence the loader needs.
type Store interface {
	List(ctx context.Context) ([]entity.Option, error)
	Insert(ctx context.Context, o entity.Option) error
}

// Service reads and seeds runtime options.
type Service struct {
	store Store
}

func NewService(s Store) *Service {
	return &Service{store: s}
}

// Load builds a Runtime from stored options. Missing options keep their
// zero value; unknown names are ignored.
func (s *Service) Load(ctx context.Context) (*Runtime, error) {
	opts, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	rt := &Runtime{}
	for _, o := range opts {
		var target any
		switch o.Name {
		case entity.OneLoginOnly:
			target = &rt.OneLoginOnly
		case entity.AutoLogout:
			target = &rt.AutoLogout
		case entity.SocialLoginNotAllowed:
			target = &rt.SocialLoginNotAllowed
		case entity.RoleDependencies:
			target = &rt.RoleDependencies
		default:
			continue
		}
		if err := json.Unmarshal(o.Value, target); err != nil {
			return nil, fmt.Errorf("option %s: %w", o.Name, err)
		}
	}
	return rt, nil
}

// Seed writes the default options that are not stored yet.
func (s *Service) Seed(ctx context.Context) error {
	d := Defaults()
	values := map[string]any{
		entity.OneLoginOnly:          d.OneLoginOnly,
		entity.AutoLogout:            d.AutoLogout,
		entity.SocialLoginNotAllowed: d.SocialLoginNotAllowed,
		entity.RoleDependencies:      d.RoleDependencies,
	}
	for name, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if err := s.store.Insert(ctx, entity.Option{Name: name, Value: raw}); err != nil {
			return fmt.Errorf("seed %s: %w", name, err)
		}
	}
	return nil
}
