package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/password"
	"github.com/slava-lu/auth-app-backend/internal/ratelimit"
	"github.com/slava-lu/auth-app-backend/internal/session"
	"github.com/slava-lu/auth-app-backend/internal/user/entity"
	"github.com/slava-lu/auth-app-backend/pkg/utilities"
)

// LoginInput is a local login by email or mobile phone.
type LoginInput struct {
	Email       string `json:"email"`
	MobilePhone string `json:"mobilePhone"`
	Password    string `json:"password"`
	IsRemember  bool   `json:"isRemember"`
}

// LoginLocal authenticates with a password. Unknown logins and wrong
// passwords fail the same way.
func (s *Service) LoginLocal(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if err := password.Validate(in.Password); err != nil {
		return nil, err
	}
	email := normalizeEmail(in.Email)
	if email == "" && in.MobilePhone == "" {
		return nil, apperr.ErrLoginFailed
	}
	limitKey := email
	if limitKey == "" {
		limitKey = in.MobilePhone
	}
	if err := s.limiter.Reserve(ctx, ratelimit.ScopeLogin, limitKey); err != nil {
		return nil, err
	}

	p, err := s.store.GetPrincipalByLogin(ctx, email, in.MobilePhone)
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("lookup login: %w", err)
	}
	if p == nil || !s.hasher.Verify(in.Password, p.PasswordHash, p.Salt) {
		s.metrics.Login(entity.ProviderLocal, "failed")
		return nil, apperr.ErrLoginFailed
	}
	if err := s.limiter.Reset(ctx, ratelimit.ScopeLogin, limitKey); err != nil {
		s.logger.Warnw("reset login attempts", "err", err)
	}

	if err := s.store.TouchLogin(ctx, p.ID, entity.ProviderLocal, s.now()); err != nil {
		return nil, fmt.Errorf("touch login: %w", err)
	}
	if err := CheckState(&p.Account, StateCheck{AllowPasswordChange: true}); err != nil {
		s.metrics.Login(entity.ProviderLocal, "rejected")
		return nil, err
	}
	res, err := s.CompleteLogin(ctx, p, in.IsRemember)
	if err != nil {
		return nil, err
	}
	s.metrics.Login(entity.ProviderLocal, "success")
	s.logger.Debugw("local login", "account_id", p.ID, "otp_required", res.OTPRequired)
	return res, nil
}

// RenewToken re-issues a remembered session with a fresh expiry. Sessions
// without remember-me are left alone and nil is returned.
func (s *Service) RenewToken(_ context.Context, c *session.Claims) (*Session, error) {
	if !c.IsRemember {
		return nil, nil
	}
	token, err := s.tokens.Issue(session.Claims{
		AccountID:         c.AccountID,
		UserID:            c.UserID,
		HashCheck:         c.HashCheck,
		IsRemember:        true,
		ImpersonationMode: c.ImpersonationMode,
	})
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Remember: true}, nil
}

// LogoutAll ends every session of the token's account. An invalid token
// is not an error; the caller clears the cookie either way.
func (s *Service) LogoutAll(ctx context.Context, token string) error {
	c := s.tokens.Verify(token)
	if c == nil {
		return nil
	}
	return s.ForceRelogin(ctx, c.AccountID)
}

// ForceRelogin rotates the account's hashCheck, invalidating all tokens.
func (s *Service) ForceRelogin(ctx context.Context, accountID int64) error {
	hc, err := utilities.RandomHex(16)
	if err != nil {
		return err
	}
	if err := s.store.SetHashCheck(ctx, accountID, hc); err != nil {
		if isNotFound(err) {
			return apperr.ErrAccountNotFound
		}
		return fmt.Errorf("rotate hash check: %w", err)
	}
	return nil
}

// ConfirmPassword re-checks the password of the signed-in account before a
// sensitive action.
func (s *Service) ConfirmPassword(ctx context.Context, accountID int64, pw string) error {
	key := fmt.Sprint(accountID)
	if err := s.limiter.Reserve(ctx, ratelimit.ScopePassword, key); err != nil {
		return err
	}
	p, err := s.store.GetPrincipal(ctx, accountID)
	if err != nil {
		if isNotFound(err) {
			return apperr.ErrPasswordCheckFailed
		}
		return fmt.Errorf("load account: %w", err)
	}
	if !s.hasher.Verify(pw, p.PasswordHash, p.Salt) {
		return apperr.ErrPasswordCheckFailed
	}
	if err := s.limiter.Reset(ctx, ratelimit.ScopePassword, key); err != nil {
		s.logger.Warnw("reset password check attempts", "err", err)
	}
	return nil
}

// LoginAs issues an impersonation session for the account with email.
// The token names the target user but keeps the impersonator's account
// and hashCheck, so revoking the impersonator also ends it.
func (s *Service) LoginAs(ctx context.Context, c *session.Claims, email string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperr.ErrImpersonationTargetGone
	}
	target, err := s.store.GetPrincipalByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.ErrImpersonationTargetGone
		}
		return nil, fmt.Errorf("lookup target: %w", err)
	}
	if err := CheckState(&target.Account, StateCheck{AllowPasswordChange: true}); err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, apperr.ErrImpersonationTargetInactive.With("targetState", ae.Code)
		}
		return nil, err
	}
	actor, err := s.store.GetPrincipal(ctx, c.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load impersonator: %w", err)
	}
	token, err := s.tokens.Issue(session.Claims{
		AccountID:         actor.ID,
		UserID:            target.UserID,
		HashCheck:         actor.HashCheck,
		ImpersonationMode: true,
	})
	if err != nil {
		return nil, err
	}
	info, err := s.store.UserInfoByUserID(ctx, target.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user info: %w", err)
	}
	info.ImpersonationMode = true
	s.logger.Infow("impersonation started", "account_id", actor.ID, "target_user_id", target.UserID)
	return &Session{Token: token, UserInfo: info}, nil
}
