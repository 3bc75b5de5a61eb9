// Package middleware holds the request guards wrapped around the API routes.
package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/httpx"
	"github.com/slava-lu/auth-app-backend/internal/metrics"
	"github.com/slava-lu/auth-app-backend/internal/session"
	"github.com/slava-lu/auth-app-backend/internal/user"
	"github.com/slava-lu/auth-app-backend/internal/user/entity"
)

// Paths the guard treats specially.
const (
	LoginLocalPath     = "/api/v1/auth/login/local"
	LoginOAuthPath     = "/api/v1/auth/oauth/loginOauth"
	PasswordChangePath = "/api/v1/auth/password/change"
)

// AccountLoader loads the account a token names.
type AccountLoader interface {
	GetPrincipal(ctx context.Context, accountID int64) (*entity.Principal, error)
}

// GuardConfig wires a Guard.
type GuardConfig struct {
	Tokens   *session.TokenService
	Cookies  *session.Cookies
	Accounts AccountLoader
	Render   httpx.Renderer
	Metrics  metrics.Recorder
	Logger   *zap.SugaredLogger
}

// Guard authenticates requests from the session cookie and enforces the
// account state rules.
type Guard struct {
	tokens   *session.TokenService
	cookies  *session.Cookies
	accounts AccountLoader
	render   httpx.Renderer
	metrics  metrics.Recorder
	logger   *zap.SugaredLogger

	skip           map[string]bool
	passwordChange map[string]bool
}

func NewGuard(c GuardConfig) *Guard {
	g := &Guard{
		tokens:         c.Tokens,
		cookies:        c.Cookies,
		accounts:       c.Accounts,
		render:         c.Render,
		metrics:        c.Metrics,
		logger:         c.Logger,
		skip:           map[string]bool{LoginLocalPath: true, LoginOAuthPath: true},
		passwordChange: map[string]bool{PasswordChangePath: true, LoginLocalPath: true, LoginOAuthPath: true},
	}
	if g.metrics == nil {
		g.metrics = metrics.Nop{}
	}
	if g.logger == nil {
		g.logger = zap.NewNop().Sugar()
	}
	return g
}

// Option adds a route specific state requirement.
type Option func(*user.StateCheck)

// WithVerifiedEmail rejects accounts whose email is not verified.
func WithVerifiedEmail() Option { return func(c *user.StateCheck) { c.RequireEmail = true } }

// WithVerifiedMobile rejects accounts whose mobile phone is not verified.
func WithVerifiedMobile() Option { return func(c *user.StateCheck) { c.RequireMobile = true } }

// Authenticate returns the session middleware. Login paths pass through
// untouched since their handlers establish identity themselves.
func (g *Guard) Authenticate(opts ...Option) func(http.Handler) http.Handler {
	var base user.StateCheck
	for _, o := range opts {
		o(&base)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			check := base
			check.AllowPasswordChange = g.passwordChange[r.URL.Path]

			c, err := g.authenticate(r, check)
			if err != nil {
				g.reject(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), c)))
		})
	}
}

func (g *Guard) authenticate(r *http.Request, check user.StateCheck) (*session.Claims, error) {
	raw := g.cookies.Read(r)
	if raw == "" {
		return nil, apperr.ErrTokenNotFound
	}
	c := g.tokens.Verify(raw)
	if c == nil {
		return nil, apperr.ErrInvalidToken
	}
	p, err := g.accounts.GetPrincipal(r.Context(), c.AccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, err
	}
	if err := user.CheckState(&p.Account, check); err != nil {
		return nil, err
	}
	if p.HashCheck != c.HashCheck {
		return nil, apperr.ErrNewLoginRequired
	}
	return c, nil
}

func (g *Guard) reject(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		g.metrics.GuardRejected(ae.Code)
	}
	g.render.Error(w, r, err)
}
