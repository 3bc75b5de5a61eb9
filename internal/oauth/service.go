// Package oauth signs users in with a social provider and links the
// provider identity to a local account.
package oauth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/metrics"
	"github.com/slava-lu/auth-app-backend/internal/oauth/entity"
	"github.com/slava-lu/auth-app-backend/internal/setting"
	"github.com/slava-lu/auth-app-backend/internal/user"
	userentity "github.com/slava-lu/auth-app-backend/internal/user/entity"
	userrepo "github.com/slava-lu/auth-app-backend/internal/user/repo"
	"github.com/slava-lu/auth-app-backend/pkg/utilities"
)

// Logins finishes a login once the provider vouched for the user.
type Logins interface {
	CompleteLogin(ctx context.Context, p *userentity.Principal, remember bool) (*user.LoginResult, error)
}

type Service struct {
	store     Store
	providers Providers
	avatars   *AvatarFetcher
	logins    Logins
	runtime   *setting.Runtime
	metrics   metrics.Recorder
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewService(store Store, providers Providers, avatars *AvatarFetcher, logins Logins, rt *setting.Runtime, rec metrics.Recorder, logger *zap.SugaredLogger) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		store:     store,
		providers: providers,
		avatars:   avatars,
		logins:    logins,
		runtime:   rt,
		metrics:   rec,
		logger:    logger,
		now:       time.Now,
	}
}

// Login exchanges code with the named provider and signs the user in,
// creating an account for an unknown email.
func (s *Service) Login(ctx context.Context, code, providerName string, remember bool) (*user.LoginResult, error) {
	p, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, apperr.ErrInvalidRequest
	}
	grant, err := p.Exchange(ctx, code)
	if err != nil {
		s.metrics.Login(p.Name(), "failed")
		return nil, err
	}
	claims, err := decodeIDToken(grant.IDToken)
	if err != nil {
		s.metrics.Login(p.Name(), "failed")
		return nil, err
	}

	var (
		picture string
		roles   []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		picture = s.avatars.Fetch(gctx, claims.Picture)
		return nil
	})
	g.Go(func() error {
		existing, err := s.store.GetPrincipalByEmail(gctx, claims.Email)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lookup account: %w", err)
		}
		roles, err = s.store.RoleNamesForUser(gctx, existing.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if s.runtime.SocialLoginBlocked(roles) {
		s.metrics.Login(p.Name(), "rejected")
		return nil, apperr.ErrSocialLoginNotAllowed
	}

	id := entity.Identity{
		Provider:       p.Name(),
		ProviderUserID: claims.Subject,
		Email:          claims.Email,
		FirstName:      claims.GivenName,
		LastName:       claims.FamilyName,
		DisplayName:    claims.Name,
		Picture:        picture,
	}
	if p.KeepsTokens() {
		id.AccessToken = nonEmpty(grant.AccessToken)
		id.RefreshToken = nonEmpty(grant.RefreshToken)
	}

	var principal *userentity.Principal
	err = s.store.InTx(ctx, func(st Store) error {
		pr, err := s.linkOrCreate(ctx, st, claims, p.Name())
		if err != nil {
			return err
		}
		if err := user.CheckState(&pr.Account, user.StateCheck{AllowPasswordChange: true}); err != nil {
			return err
		}
		id.AccountID = pr.ID
		inserted, err := st.UpsertIdentity(ctx, id)
		if err != nil {
			return fmt.Errorf("save identity: %w", err)
		}
		if inserted {
			if err := st.MarkEmailVerifiedByProvider(ctx, pr.ID); err != nil {
				return err
			}
		}
		if err := st.TouchLogin(ctx, pr.ID, p.Name(), s.now()); err != nil {
			return err
		}
		if err := st.SetPasswordChangeRequired(ctx, pr.ID, false); err != nil {
			return err
		}
		principal = pr
		return nil
	})
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			s.metrics.Login(p.Name(), "rejected")
		}
		return nil, err
	}

	res, err := s.logins.CompleteLogin(ctx, principal, remember)
	if err != nil {
		return nil, err
	}
	if res.OTPRequired {
		s.metrics.Login(p.Name(), "otp_required")
	} else {
		s.metrics.Login(p.Name(), "success")
	}
	return res, nil
}

// linkOrCreate returns the account owning the claimed email, creating one
// without a usable password when there is none.
func (s *Service) linkOrCreate(ctx context.Context, st Store, c *Claims, provider string) (*userentity.Principal, error) {
	pr, err := st.GetPrincipalByEmail(ctx, c.Email)
	if err == nil {
		return pr, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	hash, err := utilities.RandomHex(32)
	if err != nil {
		return nil, err
	}
	salt, err := utilities.RandomHex(16)
	if err != nil {
		return nil, err
	}
	hashCheck, err := utilities.RandomHex(16)
	if err != nil {
		return nil, err
	}
	accountID, _, err := st.CreateAccount(ctx, userentity.NewAccount{
		Email:            c.Email,
		PasswordHash:     hash,
		Salt:             salt,
		HashCheck:        hashCheck,
		FirstName:        c.GivenName,
		LastName:         c.FamilyName,
		IsCreatedLocally: false,
		IsEmailVerified:  true,
		Provider:         provider,
	})
	if errors.Is(err, userrepo.ErrDuplicate) {
		return nil, apperr.ErrEmailExists
	}
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	s.logger.Infow("account created from social login", "account_id", accountID, "provider", provider)
	return st.GetPrincipal(ctx, accountID)
}

// Logout revokes the app's access at the provider for providerUserID.
func (s *Service) Logout(ctx context.Context, providerUserID, providerName string) error {
	p, err := s.providers.Get(providerName)
	if err != nil {
		return err
	}
	if providerUserID == "" {
		return apperr.ErrInvalidRequest
	}
	var tokens entity.Tokens
	if p.KeepsTokens() {
		t, err := s.store.IdentityTokens(ctx, p.Name(), providerUserID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrProviderTokenMissing
		}
		if err != nil {
			return fmt.Errorf("load provider tokens: %w", err)
		}
		if t.Revocable() == "" {
			return apperr.ErrProviderTokenMissing
		}
		tokens = *t
	}
	return p.Revoke(ctx, providerUserID, tokens)
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
