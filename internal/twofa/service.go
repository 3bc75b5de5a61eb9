// Package twofa implements TOTP enrollment and the login time second factor.
package twofa

import (
	"bytes"
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"strconv"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/metrics"
	"github.com/slava-lu/auth-app-backend/internal/ratelimit"
	"github.com/slava-lu/auth-app-backend/internal/role"
	"github.com/slava-lu/auth-app-backend/internal/session"
	"github.com/slava-lu/auth-app-backend/internal/user"
	"github.com/slava-lu/auth-app-backend/internal/user/entity"
)

const qrSize = 200

var validateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Sessions issues the session once the second factor passed.
type Sessions interface {
	StartSession(ctx context.Context, p *entity.Principal, remember bool) (*user.Session, error)
}

// Config holds the 2FA settings.
type Config struct {
	Issuer       string
	ChallengeTTL time.Duration
}

// Service drives enrollment and login challenges.
type Service struct {
	store    Store
	sessions Sessions
	limiter  ratelimit.Limiter
	metrics  metrics.Recorder
	cfg      Config
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewService(store Store, sessions Sessions, limiter ratelimit.Limiter, rec metrics.Recorder, cfg Config, logger *zap.SugaredLogger) *Service {
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = 5 * time.Minute
	}
	return &Service{store: store, sessions: sessions, limiter: limiter, metrics: rec, cfg: cfg, logger: logger, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// Enrollment is a freshly generated secret pending confirmation.
type Enrollment struct {
	Secret   string `json:"secret"`
	ImageURL string `json:"imageUrl"`
}

// Init generates a secret and its QR code. The secret is kept pending;
// an enabled factor keeps working with its old secret until ConfirmInit
// succeeds.
func (s *Service) Init(ctx context.Context, c *session.Claims) (*Enrollment, error) {
	if c.ImpersonationMode {
		return nil, apperr.ErrNotInImpersonation
	}
	p, err := s.store.GetPrincipal(ctx, c.AccountID)
	if err != nil {
		return nil, s.lookupErr(err)
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: s.cfg.Issuer, AccountName: p.Email})
	if err != nil {
		return nil, fmt.Errorf("generate totp key: %w", err)
	}
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	if err := s.store.SetTwoFaPendingSecret(ctx, p.ID, key.Secret()); err != nil {
		return nil, fmt.Errorf("store secret: %w", err)
	}
	return &Enrollment{
		Secret:   key.Secret(),
		ImageURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// ConfirmInit makes the pending secret the live one when code matches it
// and grants the 2fa role.
func (s *Service) ConfirmInit(ctx context.Context, c *session.Claims, code string) (*entity.UserInfo, error) {
	if c.ImpersonationMode {
		return nil, apperr.ErrNotInImpersonation
	}
	p, err := s.store.GetPrincipal(ctx, c.AccountID)
	if err != nil {
		return nil, s.lookupErr(err)
	}
	secret := deref(p.TwoFaPendingSecret)
	step, ok, err := s.verify(ctx, p.ID, secret, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.TwoFaCheck("enroll_failed")
		return nil, apperr.ErrInvalidEnrollmentCode
	}
	err = s.store.InTx(ctx, func(tx Store) error {
		if err := tx.EnableTwoFa(ctx, p.ID, secret, step); err != nil {
			return err
		}
		return tx.AddUserRole(ctx, p.UserID, role.TwoFaID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		// a newer Init replaced the secret meanwhile
		s.metrics.TwoFaCheck("enroll_failed")
		return nil, apperr.ErrInvalidEnrollmentCode
	}
	if err != nil {
		return nil, fmt.Errorf("enable 2fa: %w", err)
	}
	s.metrics.TwoFaCheck("enrolled")
	s.logger.Infow("2fa enabled", "account_id", p.ID)
	return s.store.UserInfoByAccountID(ctx, p.ID)
}

// Remove disables 2FA and revokes the 2fa role.
func (s *Service) Remove(ctx context.Context, c *session.Claims) (*entity.UserInfo, error) {
	if c.ImpersonationMode {
		return nil, apperr.ErrNotInImpersonation
	}
	p, err := s.store.GetPrincipal(ctx, c.AccountID)
	if err != nil {
		return nil, s.lookupErr(err)
	}
	err = s.store.InTx(ctx, func(tx Store) error {
		if err := tx.DisableTwoFa(ctx, p.ID); err != nil {
			return err
		}
		return tx.RemoveUserRole(ctx, p.UserID, role.TwoFaID)
	})
	if err != nil {
		return nil, fmt.Errorf("disable 2fa: %w", err)
	}
	s.logger.Infow("2fa removed", "account_id", p.ID)
	return s.store.UserInfoByAccountID(ctx, p.ID)
}

// CheckCode completes a login challenged for a second factor. The
// challenge code is single use and expires after ChallengeTTL.
func (s *Service) CheckCode(ctx context.Context, twoFaCode, code string, remember bool) (*user.Session, error) {
	if twoFaCode == "" {
		return nil, apperr.ErrWrongCode
	}
	p, err := s.store.GetPrincipalByTwoFaCode(ctx, twoFaCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.TwoFaCheck("unknown_challenge")
			return nil, apperr.ErrWrongCode
		}
		return nil, fmt.Errorf("lookup challenge: %w", err)
	}
	if p.TwoFaCodeAt == nil || s.now().Sub(*p.TwoFaCodeAt) > s.cfg.ChallengeTTL {
		s.metrics.TwoFaCheck("expired")
		return nil, apperr.ErrWrongCode
	}
	step, ok, err := s.verify(ctx, p.ID, deref(p.TwoFaSecret), code)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.TwoFaCheck("failed")
		return nil, apperr.ErrWrongCode
	}
	fresh, err := s.store.UseTwoFaStep(ctx, p.ID, step)
	if err != nil {
		return nil, fmt.Errorf("record code step: %w", err)
	}
	if !fresh {
		s.metrics.TwoFaCheck("replayed")
		return nil, apperr.ErrWrongCode
	}
	if err := s.store.SetTwoFaChallenge(ctx, p.ID, nil, nil); err != nil {
		return nil, fmt.Errorf("clear challenge: %w", err)
	}
	if err := user.CheckState(&p.Account, user.StateCheck{AllowPasswordChange: true}); err != nil {
		return nil, err
	}
	sess, err := s.sessions.StartSession(ctx, p, remember)
	if err != nil {
		return nil, err
	}
	s.metrics.TwoFaCheck("success")
	s.metrics.Login("2fa", "success")
	return sess, nil
}

// verify reserves an OTP attempt for the account, then matches code
// against secret within the skew window. It returns the time step the
// code belongs to.
func (s *Service) verify(ctx context.Context, accountID int64, secret, code string) (int64, bool, error) {
	key := strconv.FormatInt(accountID, 10)
	if err := s.limiter.Reserve(ctx, ratelimit.ScopeOTP, key); err != nil {
		return 0, false, err
	}
	step, ok := matchStep(secret, code, s.now())
	if !ok {
		return 0, false, nil
	}
	if err := s.limiter.Reset(ctx, ratelimit.ScopeOTP, key); err != nil {
		s.logger.Warnw("reset otp attempts", "err", err)
	}
	return step, true, nil
}

// matchStep tries the current step first, then its neighbours.
func matchStep(secret, code string, now time.Time) (int64, bool) {
	if secret == "" || len(code) != validateOpts.Digits.Length() {
		return 0, false
	}
	period := int64(validateOpts.Period)
	cur := now.Unix() / period
	for _, step := range []int64{cur, cur - int64(validateOpts.Skew), cur + int64(validateOpts.Skew)} {
		want, err := totp.GenerateCodeCustom(secret, time.Unix(step*period, 0), validateOpts)
		if err == nil && subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return step, true
		}
	}
	return 0, false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *Service) lookupErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrUserNotFound
	}
	return fmt.Errorf("load account: %w", err)
}
