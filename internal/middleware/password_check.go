package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/httpx"
	"github.com/slava-lu/auth-app-backend/internal/session"
)

const maxConfirmBody = 1 << 20

// PasswordConfirmer re-checks the signed-in account's password.
type PasswordConfirmer interface {
	ConfirmPassword(ctx context.Context, accountID int64, password string) error
}

// PasswordCheck gates a sensitive route behind the caller's password. A
// body without "password" is answered with PASSWORD_VALIDATION_REQUIRED
// echoing the body back so the client can resubmit it with the password.
func PasswordCheck(confirm PasswordConfirmer, render httpx.Renderer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := session.FromContext(r.Context())
			if !ok {
				render.Error(w, r, apperr.ErrTokenNotFound)
				return
			}
			raw, err := io.ReadAll(io.LimitReader(r.Body, maxConfirmBody))
			if err != nil {
				render.Error(w, r, apperr.ErrInvalidRequest)
				return
			}
			body := map[string]any{}
			if len(bytes.TrimSpace(raw)) > 0 {
				if err := json.Unmarshal(raw, &body); err != nil {
					render.Error(w, r, apperr.ErrInvalidRequest)
					return
				}
			}
			pw, _ := body["password"].(string)
			if pw == "" {
				httpx.WriteJSON(w, http.StatusOK, map[string]any{
					"resultCode": httpx.ResultPasswordValidationRequired,
					"data":       body,
				})
				return
			}
			if err := confirm.ConfirmPassword(r.Context(), c.AccountID, pw); err != nil {
				render.Error(w, r, err)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))
			next.ServeHTTP(w, r)
		})
	}
}
