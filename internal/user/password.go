package user

import (
	"context"
	"fmt"
	"net/url"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/mail"
	"github.com/slava-lu/auth-app-backend/internal/password"
	"github.com/slava-lu/auth-app-backend/internal/session"
	"github.com/slava-lu/auth-app-backend/internal/user/entity"
	"github.com/slava-lu/auth-app-backend/pkg/utilities"
)

// ChangePassword replaces the signed-in account's password.
func (s *Service) ChangePassword(ctx context.Context, c *session.Claims, oldPw, newPw string) error {
	if c.ImpersonationMode {
		return apperr.ErrNotInImpersonation
	}
	if oldPw == "" || newPw == "" {
		return apperr.ErrPasswordChangeFailed
	}
	if oldPw == newPw {
		return apperr.ErrPasswordSameAsOld
	}
	if err := password.Validate(newPw); err != nil {
		return err
	}
	p, err := s.store.GetPrincipal(ctx, c.AccountID)
	if err != nil {
		if isNotFound(err) {
			return apperr.ErrPasswordChangeFailed
		}
		return fmt.Errorf("load account: %w", err)
	}
	if !s.hasher.Verify(oldPw, p.PasswordHash, p.Salt) {
		return apperr.ErrOldPasswordNotCorrect
	}
	return s.setPassword(ctx, p.ID, newPw)
}

func (s *Service) setPassword(ctx context.Context, accountID int64, pw string) error {
	digest, salt, err := s.hasher.HashNew(pw)
	if err != nil {
		return err
	}
	if err := s.store.SetPassword(ctx, accountID, digest, salt, s.now()); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

// checkResetCode returns the account a valid reset code belongs to. A
// matching but stale code is reported as expired, anything else as invalid.
func (s *Service) checkResetCode(ctx context.Context, email, code string) (*entity.Principal, error) {
	email = normalizeEmail(email)
	if email == "" || code == "" {
		return nil, apperr.ErrResetLinkInvalid
	}
	p, err := s.store.GetPrincipalByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.ErrResetLinkInvalid
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	if !codesEqual(p.PasswordResetCode, code) {
		return nil, apperr.ErrResetLinkInvalid
	}
	if p.PasswordResetAt == nil || !p.PasswordResetAt.Add(s.cfg.Links.ResetValidFor).After(s.now()) {
		return nil, apperr.ErrResetLinkExpired
	}
	return p, nil
}

// CheckResetCode validates a reset link without using it.
func (s *Service) CheckResetCode(ctx context.Context, email, code string) error {
	_, err := s.checkResetCode(ctx, email, code)
	return err
}

// ResetByCode sets a new password using a reset link. The code is consumed.
func (s *Service) ResetByCode(ctx context.Context, email, code, pw string) error {
	if normalizeEmail(email) == "" || code == "" || pw == "" {
		return apperr.ErrResetLinkInvalid
	}
	if err := password.Validate(pw); err != nil {
		return err
	}
	p, err := s.checkResetCode(ctx, email, code)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, p.ID, pw)
}

// RequestResetCode mails a reset link. Unknown addresses get the same
// answer without a mail being sent.
func (s *Service) RequestResetCode(ctx context.Context, email, lang string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperr.ErrNoEmailSupplied
	}
	p, err := s.store.GetPrincipalByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			s.logger.Debugw("reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("load account: %w", err)
	}
	code := utilities.NewKSUID()
	if err := s.store.SetPasswordResetCode(ctx, p.ID, code, s.now()); err != nil {
		return fmt.Errorf("store reset code: %w", err)
	}
	q := url.Values{"email": {email}, "passwordResetCode": {code}}
	s.sendMail(email, mail.PasswordReset, lang, map[string]any{
		"url":               s.cfg.Link(s.cfg.Links.PasswordReset, q.Encode()),
		"passwordResetCode": code,
		"email":             url.QueryEscape(email),
	})
	return nil
}
