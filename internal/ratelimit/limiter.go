// Package ratelimit counts attempts per account in fixed windows.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
)

// Scopes keep counters for different checks apart.
const (
	ScopeLogin    = "login"
	ScopeOTP      = "otp"
	ScopePassword = "pwcheck"
)

// ErrUnavailable wraps redis failures.
var ErrUnavailable = errors.New("attempt store unavailable")

// Limiter budgets secret checks. An attempt is reserved before the secret
// is compared, so concurrent guesses all count.
type Limiter interface {
	// Reserve takes one attempt from the window budget and returns
	// apperr.ErrTooManyAttempts once it is spent.
	Reserve(ctx context.Context, scope, id string) error
	// Reset clears the counter after a success.
	Reset(ctx context.Context, scope, id string) error
}

// INCR and the first-hit EXPIRE run as one step; the window starts with
// the first attempt.
var reserveScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// Attempts is the redis backed Limiter.
type Attempts struct {
	rdb    redis.UniversalClient
	max    int
	window time.Duration
}

func NewAttempts(rdb redis.UniversalClient, max int, window time.Duration) *Attempts {
	return &Attempts{rdb: rdb, max: max, window: window}
}

func key(scope, id string) string { return "auth:attempts:" + scope + ":" + id }

func (a *Attempts) Reserve(ctx context.Context, scope, id string) error {
	n, err := reserveScript.Run(ctx, a.rdb, []string{key(scope, id)}, a.window.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if n > int64(a.max) {
		return apperr.ErrTooManyAttempts
	}
	return nil
}

func (a *Attempts) Reset(ctx context.Context, scope, id string) error {
	if err := a.rdb.Del(ctx, key(scope, id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Noop never limits. Used when no redis is configured.
type Noop struct{}

func (Noop) Reserve(context.Context, string, string) error { return nil }
func (Noop) Reset(context.Context, string, string) error   { return nil }
