package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/httpx"
	oauthentity "github.com/slava-lu/auth-app-backend/internal/oauth/entity"
	"github.com/slava-lu/auth-app-backend/internal/profile/entity"
	"github.com/slava-lu/auth-app-backend/internal/session"
	userentity "github.com/slava-lu/auth-app-backend/internal/user/entity"
)

type fakeStore struct {
	profiles   map[int64]entity.Profile
	genders    map[string]int64
	infos      map[int64]userentity.UserInfo
	identities map[string]oauthentity.Profile
	failUpdate error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles:   map[int64]entity.Profile{},
		genders:    map[string]int64{"male": 1, "female": 2},
		infos:      map[int64]userentity.UserInfo{},
		identities: map[string]oauthentity.Profile{},
	}
}

func (f *fakeStore) InTx(_ context.Context, fn func(Store) error) error {
	saved := map[int64]entity.Profile{}
	for k, v := range f.profiles {
		saved[k] = v
	}
	if err := fn(f); err != nil {
		f.profiles = saved
		return err
	}
	return nil
}

func (f *fakeStore) GetProfile(_ context.Context, userID int64) (*entity.Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (f *fakeStore) UpdateNames(_ context.Context, userID int64, first, last *string) error {
	p := f.profiles[userID]
	if first != nil {
		p.FirstName = *first
	}
	if last != nil {
		p.LastName = *last
	}
	f.profiles[userID] = p
	return nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, userID int64, bio, linkedIn *string, setGender bool, genderID *int64) error {
	if f.failUpdate != nil {
		return f.failUpdate
	}
	p := f.profiles[userID]
	if bio != nil {
		p.Bio = bio
	}
	if linkedIn != nil {
		p.LinkedInURL = linkedIn
	}
	if setGender {
		p.Gender = nil
		for name, id := range f.genders {
			if genderID != nil && id == *genderID {
				p.Gender = &name
			}
		}
	}
	f.profiles[userID] = p
	return nil
}

func (f *fakeStore) GenderID(_ context.Context, name string) (int64, error) {
	id, ok := f.genders[name]
	if !ok {
		return 0, sql.ErrNoRows
	}
	return id, nil
}

func (f *fakeStore) UserInfoByUserID(_ context.Context, userID int64) (*userentity.UserInfo, error) {
	v, ok := f.infos[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &v, nil
}

func (f *fakeStore) IdentityProfile(_ context.Context, email, provider string) (*oauthentity.Profile, error) {
	p, ok := f.identities[email+"|"+provider]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func ptr[T any](v T) *T { return &v }

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	c := &session.Claims{AccountID: 1, UserID: 7}

	t.Run("empty update", func(t *testing.T) {
		st := newFakeStore()
		st.profiles[7] = entity.Profile{FirstName: "Ann"}
		_, err := NewService(st, nil).Update(ctx, c, entity.Update{})
		assert.True(t, errors.Is(err, apperr.ErrProfileNotSaved))
	})

	t.Run("names and profile together", func(t *testing.T) {
		st := newFakeStore()
		st.profiles[7] = entity.Profile{FirstName: "Ann", LastName: "Lee"}
		p, err := NewService(st, nil).Update(ctx, c, entity.Update{
			LastName: ptr("Park"),
			Bio:      ptr("hello"),
			Gender:   ptr("female"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Ann", p.FirstName)
		assert.Equal(t, "Park", p.LastName)
		assert.Equal(t, "hello", *p.Bio)
		assert.Equal(t, "female", *p.Gender)
	})

	t.Run("none clears gender", func(t *testing.T) {
		st := newFakeStore()
		st.profiles[7] = entity.Profile{Gender: ptr("male")}
		p, err := NewService(st, nil).Update(ctx, c, entity.Update{Gender: ptr(entity.GenderNone)})
		require.NoError(t, err)
		assert.Nil(t, p.Gender)
	})

	t.Run("unknown gender rolls back names", func(t *testing.T) {
		st := newFakeStore()
		st.profiles[7] = entity.Profile{FirstName: "Ann"}
		_, err := NewService(st, nil).Update(ctx, c, entity.Update{FirstName: ptr("Bob"), Gender: ptr("robot")})
		assert.True(t, errors.Is(err, apperr.ErrInvalidRequest))
		assert.Equal(t, "Ann", st.profiles[7].FirstName)
	})

	t.Run("failed write rolls back", func(t *testing.T) {
		st := newFakeStore()
		st.profiles[7] = entity.Profile{FirstName: "Ann"}
		st.failUpdate = errors.New("conn reset")
		_, err := NewService(st, nil).Update(ctx, c, entity.Update{FirstName: ptr("Bob"), Bio: ptr("x")})
		require.Error(t, err)
		assert.Equal(t, "Ann", st.profiles[7].FirstName)
	})
}

func TestBasic(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	st.infos[7] = userentity.UserInfo{Email: "ann@example.com", LastLoginProvider: ptr(userentity.ProviderLocal)}
	st.infos[8] = userentity.UserInfo{Email: "bob@example.com", LastLoginProvider: ptr(userentity.ProviderGoogle)}
	st.identities["bob@example.com|google"] = oauthentity.Profile{Provider: "google", DisplayName: "Bob B"}
	svc := NewService(st, nil)

	b, err := svc.Basic(ctx, &session.Claims{AccountID: 1, UserID: 7})
	require.NoError(t, err)
	assert.Nil(t, b.OAuthProfile)
	assert.False(t, b.ImpersonationMode)

	b, err = svc.Basic(ctx, &session.Claims{AccountID: 1, UserID: 8, ImpersonationMode: true})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", b.UserInfo.Email)
	assert.True(t, b.UserInfo.ImpersonationMode)
	require.NotNil(t, b.OAuthProfile)
	assert.Equal(t, "Bob B", b.OAuthProfile.DisplayName)

	_, err = svc.Basic(ctx, &session.Claims{AccountID: 1, UserID: 99})
	assert.True(t, errors.Is(err, apperr.ErrUserNotFound))
}

func TestHandler(t *testing.T) {
	st := newFakeStore()
	st.profiles[7] = entity.Profile{FirstName: "Ann"}
	st.infos[7] = userentity.UserInfo{Email: "ann@example.com"}
	h := NewHandler(NewService(st, nil), httpx.Renderer{}, nil)
	withSession := func(r *http.Request) *http.Request {
		return r.WithContext(session.NewContext(r.Context(), &session.Claims{AccountID: 1, UserID: 7}))
	}

	rec := httptest.NewRecorder()
	h.Update(rec, withSession(httptest.NewRequest(http.MethodPut, "/api/v1/users/profile/update", strings.NewReader(`{}`))))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	h.Update(rec, withSession(httptest.NewRequest(http.MethodPut, "/api/v1/users/profile/update", strings.NewReader(`{"bio":"hi"}`))))
	require.Equal(t, http.StatusOK, rec.Code)
	var p map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "hi", p["bio"])
	assert.Equal(t, "Ann", p["firstName"])

	rec = httptest.NewRecorder()
	h.Basic(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/v1/users/profile/getBasic", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	var b map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, "success", b["resultCode"])
	assert.NotContains(t, b, "oauthProfile")

	rec = httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
