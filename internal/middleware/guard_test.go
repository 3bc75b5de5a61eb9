package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slava-lu/auth-app-backend/internal/httpx"
	"github.com/slava-lu/auth-app-backend/internal/session"
	"github.com/slava-lu/auth-app-backend/internal/user/entity"
	"github.com/slava-lu/auth-app-backend/internal/user/usertest"
)

type guardFixture struct {
	guard   *Guard
	store   *usertest.Store
	tokens  *session.TokenService
	cookies *session.Cookies
	rejects []string
}

type rejectCounter struct {
	codes *[]string
}

func (r rejectCounter) Login(string, string)                   {}
func (r rejectCounter) GuardRejected(code string)              { *r.codes = append(*r.codes, code) }
func (r rejectCounter) TwoFaCheck(string)                      {}
func (r rejectCounter) HTTPRequest(string, int, time.Duration) {}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	tokens, err := session.NewTokenService("0123456789abcdef-secret", time.Hour)
	require.NoError(t, err)
	cookies := session.NewCookies("jwt", "", false, 30)
	f := &guardFixture{store: usertest.New(), tokens: tokens, cookies: cookies}
	f.guard = NewGuard(GuardConfig{
		Tokens:   tokens,
		Cookies:  cookies,
		Accounts: f.store,
		Render:   httpx.Renderer{ClearSession: cookies.Clear},
		Metrics:  rejectCounter{codes: &f.rejects},
	})
	return f
}

func (f *guardFixture) token(t *testing.T, accountID, userID int64, hashCheck string) string {
	t.Helper()
	tok, err := f.tokens.Issue(session.Claims{AccountID: accountID, UserID: userID, HashCheck: hashCheck})
	require.NoError(t, err)
	return tok
}

// serve runs a request through the guard and reports the claims the
// handler saw, if it was reached.
func (f *guardFixture) serve(path, token string, opts ...Option) (*httptest.ResponseRecorder, *session.Claims) {
	var seen *session.Claims
	h := f.guard.Authenticate(opts...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = session.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	code, _ := body["errorCode"].(string)
	return code
}

func cleared(rec *httptest.ResponseRecorder) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "jwt" && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

func TestGuardAuthenticates(t *testing.T) {
	f := newGuardFixture(t)
	id, uid := f.store.Seed(entity.Account{Email: "a@x.com", HashCheck: "hc"}, "Ann", "Lee")

	rec, seen := f.serve("/api/v1/users/profile", f.token(t, id, uid, "hc"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, id, seen.AccountID)
	assert.Equal(t, uid, seen.UserID)
	assert.Empty(t, f.rejects)
}

func TestGuardRejects(t *testing.T) {
	tests := []struct {
		name    string
		account entity.Account
		path    string
		token   func(f *guardFixture, t *testing.T, id, uid int64) string
		opts    []Option
		status  int
		code    string
		clears  bool
	}{
		{
			name:   "no cookie",
			token:  func(*guardFixture, *testing.T, int64, int64) string { return "" },
			status: http.StatusUnauthorized, code: "TOKEN_NOT_FOUND",
		},
		{
			name:   "garbage token",
			token:  func(*guardFixture, *testing.T, int64, int64) string { return "nope" },
			status: http.StatusUnauthorized, code: "INVALID_TOKEN",
		},
		{
			name:   "unknown account",
			token:  func(f *guardFixture, t *testing.T, _, uid int64) string { return f.token(t, 404, uid, "hc") },
			status: http.StatusUnauthorized, code: "USER_NOT_FOUND",
		},
		{
			name:    "deleted",
			account: entity.Account{IsDeleted: true, IsBanned: true},
			status:  http.StatusUnauthorized, code: "ACCOUNT_DEACTIVATED", clears: true,
		},
		{
			name:    "password change required",
			account: entity.Account{PasswordChangeRequired: true},
			status:  http.StatusUnauthorized, code: "PASSWORD_CHANGE_REQUIRED",
		},
		{
			name:    "email not verified",
			account: entity.Account{},
			opts:    []Option{WithVerifiedEmail()},
			status:  http.StatusForbidden, code: "EMAIL_NOT_VERIFIED",
		},
		{
			name:    "mobile not verified",
			account: entity.Account{IsEmailVerified: true},
			opts:    []Option{WithVerifiedEmail(), WithVerifiedMobile()},
			status:  http.StatusForbidden, code: "MOBILE_NOT_VERIFIED",
		},
		{
			name:    "banned",
			account: entity.Account{IsBanned: true},
			status:  http.StatusForbidden, code: "USER_BANNED", clears: true,
		},
		{
			name:   "stale hash check",
			token:  func(f *guardFixture, t *testing.T, id, uid int64) string { return f.token(t, id, uid, "old") },
			status: http.StatusUnauthorized, code: "NEW_LOGIN_REQUIRED", clears: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGuardFixture(t)
			a := tt.account
			a.Email, a.HashCheck = "a@x.com", "hc"
			id, uid := f.store.Seed(a, "Ann", "Lee")
			tok := f.token(t, id, uid, "hc")
			if tt.token != nil {
				tok = tt.token(f, t, id, uid)
			}
			path := tt.path
			if path == "" {
				path = "/api/v1/users/profile"
			}

			rec, seen := f.serve(path, tok, tt.opts...)
			assert.Nil(t, seen)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
			assert.Equal(t, tt.clears, cleared(rec))
			assert.Equal(t, []string{tt.code}, f.rejects)
		})
	}
}

func TestGuardHashCheckRotationRevokes(t *testing.T) {
	f := newGuardFixture(t)
	id, uid := f.store.Seed(entity.Account{Email: "a@x.com", HashCheck: "hc"}, "Ann", "Lee")
	tok := f.token(t, id, uid, "hc")

	rec, _ := f.serve("/api/v1/users/profile", tok)
	require.Equal(t, http.StatusNoContent, rec.Code)

	require.NoError(t, f.store.SetHashCheck(t.Context(), id, "rotated"))
	rec, _ = f.serve("/api/v1/users/profile", tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "NEW_LOGIN_REQUIRED", errorCode(t, rec))
}

func TestGuardPasswordChangePathAllowed(t *testing.T) {
	f := newGuardFixture(t)
	id, uid := f.store.Seed(entity.Account{Email: "a@x.com", HashCheck: "hc", PasswordChangeRequired: true}, "Ann", "Lee")

	rec, seen := f.serve(PasswordChangePath, f.token(t, id, uid, "hc"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotNil(t, seen)
}

func TestGuardSkipsLoginPaths(t *testing.T) {
	f := newGuardFixture(t)
	for _, p := range []string{LoginLocalPath, LoginOAuthPath} {
		rec, seen := f.serve(p, "")
		assert.Equal(t, http.StatusNoContent, rec.Code, p)
		assert.Nil(t, seen)
	}
}
