package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/httpx"
	"github.com/slava-lu/auth-app-backend/internal/session"
)

type confirmer struct{ want string }

func (c confirmer) ConfirmPassword(_ context.Context, _ int64, pw string) error {
	if pw != c.want {
		return apperr.ErrPasswordCheckFailed
	}
	return nil
}

func TestPasswordCheck(t *testing.T) {
	var got string
	h := PasswordCheck(confirmer{want: "abc12345"}, httpx.Renderer{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	call := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login/loginAs", strings.NewReader(body))
		req = req.WithContext(session.NewContext(req.Context(), &session.Claims{AccountID: 1}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("asks for password and echoes body", func(t *testing.T) {
		rec := call(`{"email":"t@x.com"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, httpx.ResultPasswordValidationRequired, body["resultCode"])
		assert.Equal(t, map[string]any{"email": "t@x.com"}, body["data"])
	})
	t.Run("wrong password", func(t *testing.T) {
		rec := call(`{"email":"t@x.com","password":"nope"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("body is replayed", func(t *testing.T) {
		payload := `{"email":"t@x.com","password":"abc12345"}`
		rec := call(payload)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, payload, got)
	})
	t.Run("malformed", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, call(`{`).Code)
	})
}
