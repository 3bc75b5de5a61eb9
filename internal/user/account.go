package user

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/mail"
	"github.com/slava-lu/auth-app-backend/internal/password"
	"github.com/slava-lu/auth-app-backend/internal/session"
	"github.com/slava-lu/auth-app-backend/internal/user/entity"
	userrepo "github.com/slava-lu/auth-app-backend/internal/user/repo"
	"github.com/slava-lu/auth-app-backend/pkg/utilities"
)

// RegisterInput is a local sign up.
type RegisterInput struct {
	Email       string `json:"email"`
	MobilePhone string `json:"mobilePhone"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	IsRemember  bool   `json:"isRemember"`
	Lang        string `json:"-"`
}

// Register creates account, user and profile in one transaction, mails the
// verification code and signs the new user in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if err := password.Validate(in.Password); err != nil {
		return nil, err
	}
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, apperr.ErrInvalidRequest
	}
	if exists, err := s.store.EmailExists(ctx, email); err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	} else if exists {
		return nil, apperr.ErrEmailExists
	}
	if exists, err := s.store.MobileExists(ctx, in.MobilePhone); err != nil {
		return nil, fmt.Errorf("check mobile: %w", err)
	} else if exists {
		return nil, apperr.ErrMobileExists
	}

	digest, salt, err := s.hasher.HashNew(in.Password)
	if err != nil {
		return nil, err
	}
	hashCheck, err := utilities.RandomHex(16)
	if err != nil {
		return nil, err
	}
	code := utilities.NewKSUID()
	var mobile *string
	if in.MobilePhone != "" {
		mobile = &in.MobilePhone
	}

	var accountID, userID int64
	err = s.store.InTx(ctx, func(tx Store) error {
		var cerr error
		accountID, userID, cerr = tx.CreateAccount(ctx, entity.NewAccount{
			Email:                 email,
			MobilePhone:           mobile,
			PasswordHash:          digest,
			Salt:                  salt,
			HashCheck:             hashCheck,
			EmailVerificationCode: &code,
			FirstName:             in.FirstName,
			LastName:              in.LastName,
			IsCreatedLocally:      true,
			Provider:              entity.ProviderLocal,
		})
		return cerr
	})
	if err != nil {
		// lost a race with a concurrent sign up
		if errors.Is(err, userrepo.ErrDuplicate) {
			return nil, apperr.ErrEmailExists
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	q := url.Values{"accountId": {strconv.FormatInt(accountID, 10)}, "emailVerificationCode": {code}}
	s.sendMail(email, mail.EmailVerification, in.Lang, map[string]any{
		"url":                   s.cfg.Link(s.cfg.Links.EmailVerification, q.Encode()),
		"emailVerificationCode": code,
		"accountId":             accountID,
		"firstName":             in.FirstName,
	})

	token, err := s.tokens.Issue(session.Claims{
		AccountID:  accountID,
		UserID:     userID,
		HashCheck:  hashCheck,
		IsRemember: in.IsRemember,
	})
	if err != nil {
		return nil, err
	}
	info, err := s.store.UserInfoByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load user info: %w", err)
	}
	s.logger.Infow("account registered", "account_id", accountID)
	return &Session{Token: token, Remember: in.IsRemember, UserInfo: info}, nil
}

// VerifyEmail consumes the emailed verification code and returns the
// verified address.
func (s *Service) VerifyEmail(ctx context.Context, accountID int64, code string) (string, error) {
	if code == "" {
		return "", apperr.ErrVerificationNotFound
	}
	p, err := s.store.GetPrincipal(ctx, accountID)
	if err != nil {
		if isNotFound(err) {
			return "", apperr.ErrVerificationNotCorrect
		}
		return "", fmt.Errorf("load account: %w", err)
	}
	if !codesEqual(p.EmailVerificationCode, code) {
		return "", apperr.ErrVerificationNotCorrect
	}
	if err := s.store.MarkEmailVerified(ctx, accountID); err != nil {
		return "", fmt.Errorf("mark verified: %w", err)
	}
	return p.Email, nil
}

// Delete soft-deletes the signed-in account and mails a restore link.
func (s *Service) Delete(ctx context.Context, c *session.Claims, lang string) error {
	if c.ImpersonationMode {
		return apperr.ErrNotInImpersonation
	}
	p, err := s.store.GetPrincipal(ctx, c.AccountID)
	if err != nil {
		if isNotFound(err) {
			return apperr.ErrUserNotFound
		}
		return fmt.Errorf("load account: %w", err)
	}
	code := utilities.NewKSUID()
	if err := s.store.SoftDelete(ctx, p.ID, code, s.now()); err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	q := url.Values{"accountId": {strconv.FormatInt(p.ID, 10)}, "accountRestoreCode": {code}}
	s.sendMail(p.Email, mail.AccountRestore, lang, map[string]any{
		"url":                s.cfg.Link(s.cfg.Links.AccountRestore, q.Encode()),
		"accountRestoreCode": code,
		"accountId":          p.ID,
	})
	s.logger.Infow("account deleted", "account_id", p.ID)
	return nil
}

// Restore undoes a soft delete when code matches the stored restore code.
func (s *Service) Restore(ctx context.Context, accountID int64, code string) error {
	if code == "" || accountID == 0 {
		return apperr.ErrRestoreLinkInvalid
	}
	p, err := s.store.GetPrincipal(ctx, accountID)
	if err != nil {
		if isNotFound(err) {
			return apperr.ErrRestoreLinkInvalid
		}
		return fmt.Errorf("load account: %w", err)
	}
	if !codesEqual(p.AccountRestoreCode, code) {
		return apperr.ErrRestoreLinkInvalid
	}
	if err := s.store.Restore(ctx, accountID, s.now()); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	return nil
}
