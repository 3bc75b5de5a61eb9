package user

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/config"
	"github.com/slava-lu/auth-app-backend/internal/mail"
	"github.com/slava-lu/auth-app-backend/internal/metrics"
	"github.com/slava-lu/auth-app-backend/internal/password"
	"github.com/slava-lu/auth-app-backend/internal/ratelimit"
	"github.com/slava-lu/auth-app-backend/internal/session"
	"github.com/slava-lu/auth-app-backend/internal/setting"
	"github.com/slava-lu/auth-app-backend/internal/user/entity"
	"github.com/slava-lu/auth-app-backend/pkg/utilities"
)

// Deps are the collaborators of Service. Limiter and Metrics may be nil.
type Deps struct {
	Store   Store
	Hasher  *password.Hasher
	Tokens  *session.TokenService
	Mail    mail.Queue
	Limiter ratelimit.Limiter
	Metrics metrics.Recorder
	Runtime *setting.Runtime
	Config  *config.Config
	Logger  *zap.SugaredLogger
}

// Service orchestrates login and account lifecycle flows.
type Service struct {
	store   Store
	hasher  *password.Hasher
	tokens  *session.TokenService
	mail    mail.Queue
	limiter ratelimit.Limiter
	metrics metrics.Recorder
	runtime *setting.Runtime
	cfg     *config.Config
	logger  *zap.SugaredLogger
	now     func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		store:   d.Store,
		hasher:  d.Hasher,
		tokens:  d.Tokens,
		mail:    d.Mail,
		limiter: d.Limiter,
		metrics: d.Metrics,
		runtime: d.Runtime,
		cfg:     d.Config,
		logger:  d.Logger,
		now:     time.Now,
	}
	if s.limiter == nil {
		s.limiter = ratelimit.Noop{}
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.runtime == nil {
		s.runtime = &setting.Runtime{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop().Sugar()
	}
	return s
}

// WithClock replaces the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// Session is an issued session token with the header info shown after login.
type Session struct {
	Token    string
	Remember bool
	UserInfo *entity.UserInfo
}

// LoginResult is either a Session or a pending second factor challenge.
type LoginResult struct {
	OTPRequired bool
	TwoFaCode   string
	Session     *Session
}

// StateCheck selects the optional account state checks.
type StateCheck struct {
	// AllowPasswordChange skips PASSWORD_CHANGE_REQUIRED, for the login
	// and password change routes.
	AllowPasswordChange bool
	RequireEmail        bool
	RequireMobile       bool
}

// CheckState applies the account state rules shared by the session guard
// and every login flow. The order is part of the contract.
func CheckState(a *entity.Account, c StateCheck) error {
	switch {
	case a.IsDeleted:
		return apperr.ErrAccountDeactivated
	case a.PasswordChangeRequired && !c.AllowPasswordChange:
		return apperr.ErrPasswordChangeRequired
	case c.RequireEmail && !a.IsEmailVerified:
		return apperr.ErrEmailNotVerified
	case c.RequireMobile && !a.IsMobileVerified:
		return apperr.ErrMobileNotVerified
	case a.IsBanned:
		return apperr.ErrUserBanned
	}
	return nil
}

// CompleteLogin runs after primary authentication succeeded. Accounts
// with 2FA get a challenge code instead of a session.
func (s *Service) CompleteLogin(ctx context.Context, p *entity.Principal, remember bool) (*LoginResult, error) {
	if p.IsTwoFaEnabled {
		code := utilities.NewKSUID()
		at := s.now()
		if err := s.store.SetTwoFaChallenge(ctx, p.ID, &code, &at); err != nil {
			return nil, fmt.Errorf("store 2fa challenge: %w", err)
		}
		return &LoginResult{OTPRequired: true, TwoFaCode: code}, nil
	}
	sess, err := s.StartSession(ctx, p, remember)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: sess}, nil
}

// StartSession issues a session token for p. With oneLoginOnly set, the
// account's hashCheck is rotated first so older sessions end.
func (s *Service) StartSession(ctx context.Context, p *entity.Principal, remember bool) (*Session, error) {
	hashCheck := p.HashCheck
	if s.runtime.OneLoginOnly {
		hc, err := utilities.RandomHex(16)
		if err != nil {
			return nil, err
		}
		if err := s.store.SetHashCheck(ctx, p.ID, hc); err != nil {
			return nil, fmt.Errorf("rotate hash check: %w", err)
		}
		hashCheck = hc
	}
	token, err := s.tokens.Issue(session.Claims{
		AccountID:  p.ID,
		UserID:     p.UserID,
		HashCheck:  hashCheck,
		IsRemember: remember,
	})
	if err != nil {
		return nil, err
	}
	info, err := s.store.UserInfoByAccountID(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load user info: %w", err)
	}
	return &Session{Token: token, Remember: remember, UserInfo: info}, nil
}

func (s *Service) sendMail(to string, t mail.Template, lang string, data map[string]any) {
	s.mail.Enqueue(mail.Message{To: to, From: s.cfg.Mail.From, Template: t, Lang: lang, Data: data})
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func codesEqual(stored *string, given string) bool {
	if stored == nil || *stored == "" || given == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(given)) == 1
}

func isNotFound(err error) bool { return errors.Is(err, sql.ErrNoRows) }
