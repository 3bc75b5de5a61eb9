package password

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
)

func testHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(1000, 32, "sha512")
	require.NoError(t, err)
	return h
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h := testHasher(t)
	for _, pw := range []string{"abc12345", "päss wörd 9", "x1234567890123456789012345678901234567890"} {
		digest, salt, err := h.HashNew(pw)
		require.NoError(t, err)
		assert.Len(t, salt, SaltBytes*2)
		assert.Len(t, digest, 64)
		assert.True(t, h.Verify(pw, digest, salt), pw)

		flipped := []byte(pw)
		flipped[0] ^= 0x01
		assert.False(t, h.Verify(string(flipped), digest, salt), pw)
	}
}

func TestHashIsDeterministic(t *testing.T) {
	h := testHasher(t)
	assert.Equal(t, h.Hash("abc12345", "salt"), h.Hash("abc12345", "salt"))
	assert.NotEqual(t, h.Hash("abc12345", "salt"), h.Hash("abc12345", "pepper"))
}

func TestVerifyEmptyInput(t *testing.T) {
	h := testHasher(t)
	digest := h.Hash("abc12345", "s")
	assert.False(t, h.Verify("", digest, "s"))
	assert.False(t, h.Verify("abc12345", "", "s"))
}

func TestNewHasherRejectsUnknownDigest(t *testing.T) {
	_, err := NewHasher(1000, 32, "md5")
	assert.Error(t, err)
	_, err = NewHasher(0, 32, "sha1")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		pw      string
		wantKey string
	}{
		{"empty", "", "auth_error#validation_required_field"},
		{"short", "abc1234", "auth_error#validation_password_length"},
		{"no digit", "abcdefgh", "auth_error#validation_password_length"},
		{"no letter", "12345678", "auth_error#validation_password_length"},
		{"ok", "abc12345", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.pw)
			if tt.wantKey == "" {
				assert.NoError(t, err)
				return
			}
			var ae *apperr.Error
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, "PASSWORD_POLICY", ae.Code)
			assert.Equal(t, tt.wantKey, ae.MessageKey)
		})
	}
}
