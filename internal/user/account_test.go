package user

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/mail"
	"github.com/slava-lu/auth-app-backend/internal/session"
	"github.com/slava-lu/auth-app-backend/internal/user/entity"
)

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	code := "verify-me"
	id, _ := f.seed(t, "a@x.com", "abc12345", func(a *entity.Account) { a.EmailVerificationCode = &code })
	ctx := context.Background()

	_, err := f.svc.VerifyEmail(ctx, id, "")
	assert.True(t, errors.Is(err, apperr.ErrVerificationNotFound))
	_, err = f.svc.VerifyEmail(ctx, id, "nope")
	assert.True(t, errors.Is(err, apperr.ErrVerificationNotCorrect))
	_, err = f.svc.VerifyEmail(ctx, 404, code)
	assert.True(t, errors.Is(err, apperr.ErrVerificationNotCorrect))

	email, err := f.svc.VerifyEmail(ctx, id, code)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", email)
	acc := f.store.Account(id)
	assert.True(t, acc.IsEmailVerified)
	assert.Nil(t, acc.EmailVerificationCode)

	// the code is single use
	_, err = f.svc.VerifyEmail(ctx, id, code)
	assert.True(t, errors.Is(err, apperr.ErrVerificationNotCorrect))
}

func TestDeleteAndRestore(t *testing.T) {
	f := newFixture(t)
	id, uid := f.seed(t, "a@x.com", "abc12345", nil)
	ctx := context.Background()

	err := f.svc.Delete(ctx, &session.Claims{AccountID: id, UserID: uid, ImpersonationMode: true}, "en")
	assert.True(t, errors.Is(err, apperr.ErrNotInImpersonation))
	assert.False(t, f.store.Account(id).IsDeleted)

	require.NoError(t, f.svc.Delete(ctx, &session.Claims{AccountID: id, UserID: uid}, "de"))
	acc := f.store.Account(id)
	require.True(t, acc.IsDeleted)
	require.NotNil(t, acc.AccountRestoreCode)
	sent := f.mail.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, mail.AccountRestore, sent[0].Template)
	assert.Equal(t, "de", sent[0].Lang)

	// deleted accounts cannot log in
	_, err = f.svc.LoginLocal(ctx, LoginInput{Email: "a@x.com", Password: "abc12345"})
	assert.True(t, errors.Is(err, apperr.ErrAccountDeactivated))

	assert.True(t, errors.Is(f.svc.Restore(ctx, id, ""), apperr.ErrRestoreLinkInvalid))
	assert.True(t, errors.Is(f.svc.Restore(ctx, id, "wrong"), apperr.ErrRestoreLinkInvalid))
	assert.True(t, errors.Is(f.svc.Restore(ctx, 404, *acc.AccountRestoreCode), apperr.ErrRestoreLinkInvalid))

	require.NoError(t, f.svc.Restore(ctx, id, *acc.AccountRestoreCode))
	acc = f.store.Account(id)
	assert.False(t, acc.IsDeleted)
	assert.Nil(t, acc.AccountRestoreCode)
	assert.NotNil(t, acc.RestoredAt)
}
