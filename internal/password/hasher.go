// Package password implements salted PBKDF2 hashing and the password policy.
package password

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/slava-lu/auth-app-backend/pkg/utilities"
)

// SaltBytes is the size of a freshly generated salt before hex encoding.
const SaltBytes = 16

// Hasher derives hex digests with PBKDF2. Parameters come from deployment
// config and must not change once accounts exist.
type Hasher struct {
	iterations int
	keyLen     int
	digest     func() hash.Hash
}

// NewHasher returns a Hasher for the given digest name (sha1, sha256, sha512).
func NewHasher(iterations, keyLen int, digest string) (*Hasher, error) {
	var h func() hash.Hash
	switch strings.ToLower(digest) {
	case "sha1":
		h = sha1.New
	case "sha256":
		h = sha256.New
	case "sha512":
		h = sha512.New
	default:
		return nil, fmt.Errorf("unsupported digest %q", digest)
	}
	if iterations <= 0 || keyLen <= 0 {
		return nil, fmt.Errorf("invalid pbkdf2 parameters: iterations=%d keyLen=%d", iterations, keyLen)
	}
	return &Hasher{iterations: iterations, keyLen: keyLen, digest: h}, nil
}

// Hash returns the hex encoded derived key for password and salt.
func (h *Hasher) Hash(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), h.iterations, h.keyLen, h.digest)
	return hex.EncodeToString(key)
}

// Verify reports whether password hashes to digest. Empty input is never valid.
func (h *Hasher) Verify(password, digest, salt string) bool {
	if password == "" || digest == "" {
		return false
	}
	got := h.Hash(password, salt)
	return subtle.ConstantTimeCompare([]byte(got), []byte(digest)) == 1
}

// NewSalt returns a fresh random hex salt.
func NewSalt() (string, error) {
	return utilities.RandomHex(SaltBytes)
}

// HashNew generates a salt and hashes password with it.
func (h *Hasher) HashNew(password string) (digest, salt string, err error) {
	salt, err = NewSalt()
	if err != nil {
		return "", "", err
	}
	return h.Hash(password, salt), salt, nil
}
