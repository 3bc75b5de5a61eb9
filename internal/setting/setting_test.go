package setting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/slava-lu/auth-app-backend/internal/httpx"
	"github.com/slava-lu/auth-app-backend/internal/role"
	"github.com/slava-lu/auth-app-backend/internal/setting/entity"
)

type memStore struct {
	opts map[string]json.RawMessage
}

func (m *memStore) List(context.Context) ([]entity.Option, error) {
	var out []entity.Option
	for k, v := range m.opts {
		out = append(out, entity.Option{Name: k, Value: v})
	}
	return out, nil
}

func (m *memStore) Insert(_ context.Context, o entity.Option) error {
	if _, ok := m.opts[o.Name]; !ok {
		m.opts[o.Name] = o.Value
	}
	return nil
}

func TestSeedThenLoad(t *testing.T) {
	st := &memStore{opts: map[string]json.RawMessage{}}
	svc := NewService(st)
	require.NoError(t, svc.Seed(context.Background()))

	rt, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *rt)
	assert.Equal(t, [][]string{{role.TwoFa}}, rt.Deps()[role.Admin])
}

func TestSeedKeepsExisting(t *testing.T) {
	st := &memStore{opts: map[string]json.RawMessage{
		entity.OneLoginOnly: json.RawMessage(`true`),
	}}
	svc := NewService(st)
	require.NoError(t, svc.Seed(context.Background()))

	rt, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, rt.OneLoginOnly)
}

func TestLoadRejectsBadJSON(t *testing.T) {
	st := &memStore{opts: map[string]json.RawMessage{
		entity.RoleDependencies: json.RawMessage(`{"admin":"2fa"}`),
	}}
	_, err := NewService(st).Load(context.Background())
	assert.Error(t, err)
}

func TestSocialLoginBlocked(t *testing.T) {
	rt := Defaults()
	assert.True(t, rt.SocialLoginBlocked([]string{role.TwoFa, role.Admin}))
	assert.False(t, rt.SocialLoginBlocked([]string{role.TwoFa}))

	var nilRT *Runtime
	assert.False(t, nilRT.SocialLoginBlocked([]string{role.Admin}))
	assert.NotNil(t, nilRT.Deps())
}

type roleList []role.Role

func (l roleList) ListRoles(context.Context) ([]role.Role, error) {
	if l == nil {
		return nil, errors.New("db down")
	}
	return l, nil
}

func TestConfigOptionHidesRoles(t *testing.T) {
	rt := Defaults()
	h := NewHandler(&rt, roleList(role.Builtin), httpx.Renderer{}, zap.NewNop().Sugar())

	w := httptest.NewRecorder()
	h.ConfigOption(w, httptest.NewRequest(http.MethodGet, "/api/v1/system/configOption", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		ResultCode string      `json:"resultCode"`
		Roles      []role.Role `json:"roles"`
		Config     Runtime     `json:"config"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, httpx.ResultSuccess, body.ResultCode)
	assert.Equal(t, role.Visible(role.Builtin), body.Roles)
	assert.Equal(t, rt.SocialLoginNotAllowed, body.Config.SocialLoginNotAllowed)
}

func TestConfigOptionStoreError(t *testing.T) {
	rt := Defaults()
	h := NewHandler(&rt, roleList(nil), httpx.Renderer{}, zap.NewNop().Sugar())
	w := httptest.NewRecorder()
	h.ConfigOption(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
