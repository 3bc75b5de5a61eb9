// Package session issues and verifies the signed session tokens and owns
// the session cookie contract.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are carried by every session token. HashCheck is a snapshot of the
// account's session marker at issue time.
type Claims struct {
	AccountID         int64  `json:"accountId"`
	UserID            int64  `json:"userId"`
	HashCheck         string `json:"hashCheck"`
	IsRemember        bool   `json:"isRemember,omitempty"`
	ImpersonationMode bool   `json:"impersonationMode,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs HS256 session tokens with a fixed lifetime.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("empty jwt secret")
	}
	if ttl <= 0 {
		return nil, errors.New("jwt ttl must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source. Used by tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	cp := *s
	cp.now = now
	return &cp
}

// Issue signs c. Expiry is always now+ttl; remember-me only affects the cookie.
func (s *TokenService) Issue(c Claims) (string, error) {
	now := s.now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify returns the claims of a valid token, or nil when the token is
// missing, malformed, expired or signed with another key.
func (s *TokenService) Verify(token string) *Claims {
	if token == "" {
		return nil
	}
	var c Claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid || c.AccountID == 0 {
		return nil
	}
	return &c
}
