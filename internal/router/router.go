package router

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/slava-lu/auth-app-backend/internal/admin"
	"github.com/slava-lu/auth-app-backend/internal/httpx"
	"github.com/slava-lu/auth-app-backend/internal/metrics"
	"github.com/slava-lu/auth-app-backend/internal/middleware"
	"github.com/slava-lu/auth-app-backend/internal/oauth"
	"github.com/slava-lu/auth-app-backend/internal/profile"
	"github.com/slava-lu/auth-app-backend/internal/role"
	"github.com/slava-lu/auth-app-backend/internal/setting"
	"github.com/slava-lu/auth-app-backend/internal/twofa"
	"github.com/slava-lu/auth-app-backend/internal/user"
	"github.com/slava-lu/auth-app-backend/pkg/utilities"
)

const requestIDHeader = "X-Request-Id"

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware tags each request with an id, logs it at debug level
// and records its status and latency.
func LoggingMiddleware(logger *zap.SugaredLogger, rec metrics.Recorder) func(http.Handler) http.Handler {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = utilities.NewRequestID()
			}
			w.Header().Set(requestIDHeader, id)
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			rec.HTTPRequest(r.Method, status, dur)
			logger.Debugw("http request",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}
			// HSTS only over TLS; 30 days
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			// session responses must never be cached
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}

// Deps are the handlers and guards the API is assembled from.
type Deps struct {
	Logger    *zap.SugaredLogger
	Metrics   metrics.Recorder
	Gatherer  prometheus.Gatherer
	Render    httpx.Renderer
	Guard     *middleware.Guard
	Roles     middleware.Roles
	Confirmer middleware.PasswordConfirmer
	IPLimiter *middleware.IPLimiter
	// Ping reports datastore health for /health.
	Ping func(ctx context.Context) error

	User    *user.Handler
	TwoFa   *twofa.Handler
	OAuth   *oauth.Handler
	Profile *profile.Handler
	Admin   *admin.Handler
	System  *setting.Handler
}

type mw = func(http.Handler) http.Handler

// chain wraps h so the first middleware runs first.
func chain(h http.HandlerFunc, mws ...mw) http.Handler {
	var out http.Handler = h
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// RegisterRoutes mounts the API on the standard library's http.ServeMux.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()

	auth := d.Guard.Authenticate()
	throttle := func(h http.Handler) http.Handler { return h }
	if d.IPLimiter != nil {
		throttle = d.IPLimiter.Middleware()
	}
	public := func(h http.HandlerFunc) http.Handler { return chain(h, throttle) }
	guarded := func(h http.HandlerFunc, extra ...mw) http.Handler {
		return chain(h, append([]mw{auth}, extra...)...)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if d.Ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ping(ctx); err != nil {
				d.Logger.Warnw("health check failed", "error", err)
				httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	if d.Gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(d.Gatherer))
	}

	const v1 = "/api/v1"

	// login
	mux.Handle("POST "+v1+"/auth/login/local", public(d.User.LoginLocal))
	mux.Handle("GET "+v1+"/auth/login/updateJwt", guarded(d.User.RenewToken))
	mux.Handle("POST "+v1+"/auth/login/loginAs", guarded(d.User.LoginAs,
		d.Roles.Require(role.Impersonation),
		middleware.PasswordCheck(d.Confirmer, d.Render),
	))
	mux.HandleFunc("GET "+v1+"/auth/login/logout", d.User.Logout)
	mux.HandleFunc("GET "+v1+"/auth/login/logoutAll", d.User.LogoutAll)

	// accounts
	mux.Handle("POST "+v1+"/auth/accounts", public(d.User.Register))
	mux.Handle("DELETE "+v1+"/auth/accounts/delete", guarded(d.User.Delete))
	mux.Handle("GET "+v1+"/auth/accounts/restore", public(d.User.Restore))
	mux.Handle("GET "+v1+"/auth/accounts/verifyEmail", public(d.User.VerifyEmail))

	// password
	mux.Handle("POST "+v1+"/auth/password/change", guarded(d.User.ChangePassword))
	mux.Handle("GET "+v1+"/auth/password/checkResetCode", public(d.User.CheckResetCode))
	mux.Handle("POST "+v1+"/auth/password/resetByCode", public(d.User.ResetByCode))
	mux.Handle("GET "+v1+"/auth/password/requestResetCode", public(d.User.RequestResetCode))

	// 2fa
	mux.Handle("POST "+v1+"/auth/2fa/checkCode", public(d.TwoFa.CheckCode))
	mux.Handle("GET "+v1+"/auth/2fa/init", guarded(d.TwoFa.Init))
	mux.Handle("PUT "+v1+"/auth/2fa/confirmInit", guarded(d.TwoFa.ConfirmInit))
	mux.Handle("PUT "+v1+"/auth/2fa/remove", guarded(d.TwoFa.Remove))

	// oauth
	mux.Handle("POST "+v1+"/auth/oauth/loginOauth", public(d.OAuth.Login))
	mux.HandleFunc("GET "+v1+"/auth/oauth/logoutOauth", d.OAuth.Logout)

	// profile
	mux.Handle("GET "+v1+"/users/profile", guarded(d.Profile.Get))
	mux.Handle("GET "+v1+"/users/profile/getBasic", guarded(d.Profile.Basic))
	mux.Handle("PUT "+v1+"/users/profile/update", guarded(d.Profile.Update))

	// admin
	isAdmin := d.Roles.Require(role.Admin)
	mux.Handle("GET "+v1+"/admin/users", guarded(d.Admin.List, isAdmin))
	mux.Handle("GET "+v1+"/admin/users/{accountId}", guarded(d.Admin.Detail, isAdmin))
	mux.Handle("POST "+v1+"/admin/users/{accountId}/block", guarded(d.Admin.Block, isAdmin))
	mux.Handle("POST "+v1+"/admin/users/{accountId}/forcePasswordChange", guarded(d.Admin.ForcePasswordChange, isAdmin))
	mux.Handle("POST "+v1+"/admin/users/{accountId}/forceRelogin", guarded(d.Admin.ForceRelogin, isAdmin))
	mux.Handle("POST "+v1+"/admin/users/{accountId}/assignRoles", guarded(d.Admin.AssignRoles, isAdmin))

	// system
	mux.Handle("GET "+v1+"/system/configOption", guarded(d.System.ConfigOption))

	return LoggingMiddleware(d.Logger, d.Metrics)(SecurityHeadersMiddleware()(mux))
}
