// Package profile serves the signed-in user's own profile.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	oauthentity "github.com/slava-lu/auth-app-backend/internal/oauth/entity"
	"github.com/slava-lu/auth-app-backend/internal/profile/entity"
	"github.com/slava-lu/auth-app-backend/internal/session"
	userentity "github.com/slava-lu/auth-app-backend/internal/user/entity"
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

// Basic is the header info of the current session.
type Basic struct {
	UserInfo          *userentity.UserInfo `json:"userInfo"`
	ImpersonationMode bool                 `json:"impersonationMode"`
	OAuthProfile      *oauthentity.Profile `json:"oauthProfile,omitempty"`
}

// Get returns the profile of the session's user.
func (s *Service) Get(ctx context.Context, c *session.Claims) (*entity.Profile, error) {
	p, err := s.store.GetProfile(ctx, c.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrAccountNotFound
	}
	return p, err
}

// Update applies u in one transaction and returns the stored result.
func (s *Service) Update(ctx context.Context, c *session.Claims, u entity.Update) (*entity.Profile, error) {
	if u.Empty() {
		return nil, apperr.ErrProfileNotSaved
	}
	err := s.store.InTx(ctx, func(st Store) error {
		if u.TouchesNames() {
			if err := st.UpdateNames(ctx, c.UserID, u.FirstName, u.LastName); err != nil {
				return fmt.Errorf("update names: %w", err)
			}
		}
		if !u.TouchesProfile() {
			return nil
		}
		var genderID *int64
		setGender := u.Gender != nil
		if setGender && *u.Gender != entity.GenderNone {
			id, err := st.GenderID(ctx, *u.Gender)
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.ErrInvalidRequest
			}
			if err != nil {
				return err
			}
			genderID = &id
		}
		if err := st.UpdateProfile(ctx, c.UserID, u.Bio, u.LinkedInURL, setGender, genderID); err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetProfile(ctx, c.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrProfileNotSaved
	}
	return p, err
}

// Basic returns the user info of the session's user id, so an
// impersonating admin sees the target, plus the provider profile when
// the last login was social.
func (s *Service) Basic(ctx context.Context, c *session.Claims) (*Basic, error) {
	info, err := s.store.UserInfoByUserID(ctx, c.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	info.ImpersonationMode = c.ImpersonationMode
	b := &Basic{UserInfo: info, ImpersonationMode: c.ImpersonationMode}
	if info.LastLoginProvider == nil || *info.LastLoginProvider == userentity.ProviderLocal {
		return b, nil
	}
	op, err := s.store.IdentityProfile(ctx, info.Email, *info.LastLoginProvider)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.Warnw("no provider profile for social login", "user_id", c.UserID, "provider", *info.LastLoginProvider)
	case err != nil:
		return nil, err
	default:
		b.OAuthProfile = op
	}
	return b, nil
}
