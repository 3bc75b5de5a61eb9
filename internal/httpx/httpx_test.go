package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRendererCodedError(t *testing.T) {
	cleared := false
	rd := Renderer{Logger: zap.NewNop().Sugar(), ClearSession: func(http.ResponseWriter) { cleared = true }}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rd.Error(rec, req, apperr.ErrRolesMissing.With("missedRoles", []string{"admin"}))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, cleared)
	body := decodeBody(t, rec)
	assert.Equal(t, "error", body["resultCode"])
	assert.Equal(t, "ROLES_MISSING", body["errorCode"])
	assert.Equal(t, []any{"admin"}, body["missedRoles"])
}

func TestRendererClearsSession(t *testing.T) {
	cleared := false
	rd := Renderer{ClearSession: func(http.ResponseWriter) { cleared = true }}

	rec := httptest.NewRecorder()
	rd.Error(rec, httptest.NewRequest(http.MethodGet, "/x", nil), apperr.ErrUserBanned)

	assert.True(t, cleared)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRendererHidesInternalErrors(t *testing.T) {
	rd := Renderer{Logger: zap.NewNop().Sugar()}

	rec := httptest.NewRecorder()
	rd.Error(rec, httptest.NewRequest(http.MethodGet, "/x", nil), errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Equal(t, "INTERNAL_ERROR", decodeBody(t, rec)["errorCode"])
}

func TestDecode(t *testing.T) {
	var v struct {
		Email string `json:"email"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com"}`))
	require.NoError(t, Decode(req, &v))
	assert.Equal(t, "a@x.com", v.Email)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.NoError(t, Decode(req, &v))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	assert.ErrorIs(t, Decode(req, &v), apperr.ErrInvalidRequest)
}
