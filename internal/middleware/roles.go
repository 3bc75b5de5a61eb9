package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/httpx"
	"github.com/slava-lu/auth-app-backend/internal/metrics"
	"github.com/slava-lu/auth-app-backend/internal/role"
	"github.com/slava-lu/auth-app-backend/internal/session"
	"github.com/slava-lu/auth-app-backend/internal/setting"
)

// RoleSource returns the role names a user holds.
type RoleSource interface {
	RoleNamesForUser(ctx context.Context, userID int64) ([]string, error)
}

// Roles builds RBAC middlewares. Dependencies come from the runtime
// config loaded at boot.
type Roles struct {
	Source  RoleSource
	Runtime *setting.Runtime
	Render  httpx.Renderer
	Metrics metrics.Recorder
}

// Require rejects requests whose user lacks any of required or the
// dependency roles configured for them. It must run after the Guard.
func (rs Roles) Require(required ...string) func(http.Handler) http.Handler {
	if len(required) == 0 {
		panic("middleware: Require needs at least one role")
	}
	rec := rs.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := session.FromContext(r.Context())
			if !ok {
				rs.Render.Error(w, r, apperr.ErrTokenNotFound)
				return
			}
			held, err := rs.Source.RoleNamesForUser(r.Context(), c.UserID)
			if err != nil {
				rs.Render.Error(w, r, err)
				return
			}
			if err := role.Check(held, required, rs.Runtime.Deps()); err != nil {
				var ae *apperr.Error
				if errors.As(err, &ae) {
					rec.GuardRejected(ae.Code)
				}
				rs.Render.Error(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
