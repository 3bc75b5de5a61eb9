package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/mail"
	"github.com/slava-lu/auth-app-backend/internal/session"
	"github.com/slava-lu/auth-app-backend/internal/user/entity"
)

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	id, uid := f.seed(t, "a@x.com", "abc12345", func(a *entity.Account) { a.PasswordChangeRequired = true })
	own := &session.Claims{AccountID: id, UserID: uid}

	tests := []struct {
		name     string
		c        *session.Claims
		old, new string
		want     *apperr.Error
	}{
		{"impersonating", &session.Claims{AccountID: id, ImpersonationMode: true}, "abc12345", "xyz12345", apperr.ErrNotInImpersonation},
		{"empty", own, "", "xyz12345", apperr.ErrPasswordChangeFailed},
		{"same", own, "abc12345", "abc12345", apperr.ErrPasswordSameAsOld},
		{"weak", own, "abc12345", "short1", apperr.ErrPasswordPolicy},
		{"wrong old", own, "abc99999", "xyz12345", apperr.ErrOldPasswordNotCorrect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.ChangePassword(context.Background(), tt.c, tt.old, tt.new)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	oldSalt := f.store.Account(id).Salt
	require.NoError(t, f.svc.ChangePassword(context.Background(), own, "abc12345", "xyz12345"))
	acc := f.store.Account(id)
	assert.NotEqual(t, oldSalt, acc.Salt)
	assert.True(t, f.hasher.Verify("xyz12345", acc.PasswordHash, acc.Salt))
	assert.False(t, acc.PasswordChangeRequired)
}

func TestRequestResetCodeUnknownEmailSendsNothing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.RequestResetCode(context.Background(), "ghost@x.com", "en"))
	assert.Empty(t, f.mail.sent())

	err := f.svc.RequestResetCode(context.Background(), " ", "en")
	assert.True(t, errors.Is(err, apperr.ErrNoEmailSupplied))
}

func TestResetCodeLifecycle(t *testing.T) {
	f := newFixture(t)
	id, _ := f.seed(t, "a@x.com", "abc12345", nil)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestResetCode(ctx, "a@x.com", "en"))
	sent := f.mail.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, mail.PasswordReset, sent[0].Template)
	code := *f.store.Account(id).PasswordResetCode
	assert.Equal(t, code, sent[0].Data["passwordResetCode"])

	assert.NoError(t, f.svc.CheckResetCode(ctx, "a@x.com", code))
	assert.True(t, errors.Is(f.svc.CheckResetCode(ctx, "a@x.com", "other"), apperr.ErrResetLinkInvalid))
	assert.True(t, errors.Is(f.svc.CheckResetCode(ctx, "", code), apperr.ErrResetLinkInvalid))

	err := f.svc.ResetByCode(ctx, "a@x.com", code, "weak")
	assert.True(t, errors.Is(err, apperr.ErrPasswordPolicy))

	require.NoError(t, f.svc.ResetByCode(ctx, "a@x.com", code, "new12345"))
	acc := f.store.Account(id)
	assert.Nil(t, acc.PasswordResetCode)
	assert.True(t, f.hasher.Verify("new12345", acc.PasswordHash, acc.Salt))

	// consumed
	assert.True(t, errors.Is(f.svc.CheckResetCode(ctx, "a@x.com", code), apperr.ErrResetLinkInvalid))
}

func TestResetCodeExpiresAfterWindow(t *testing.T) {
	f := newFixture(t)
	id, _ := f.seed(t, "a@x.com", "abc12345", nil)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestResetCode(ctx, "a@x.com", "en"))
	code := *f.store.Account(id).PasswordResetCode

	f.now = f.now.Add(24*time.Hour + time.Second)
	err := f.svc.CheckResetCode(ctx, "a@x.com", code)
	assert.True(t, errors.Is(err, apperr.ErrResetLinkExpired))
	err = f.svc.ResetByCode(ctx, "a@x.com", code, "new12345")
	assert.True(t, errors.Is(err, apperr.ErrResetLinkExpired))

	// a wrong code stays invalid rather than expired
	err = f.svc.CheckResetCode(ctx, "a@x.com", "wrong")
	assert.True(t, errors.Is(err, apperr.ErrResetLinkInvalid))
}
