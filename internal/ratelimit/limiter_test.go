package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
)

func newAttempts(t *testing.T, max int) (*Attempts, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewAttempts(rdb, max, time.Minute), mr
}

func TestAttemptsBudget(t *testing.T) {
	a, mr := newAttempts(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, a.Reserve(ctx, ScopeOTP, "7"))
	}
	err := a.Reserve(ctx, ScopeOTP, "7")
	assert.True(t, errors.Is(err, apperr.ErrTooManyAttempts))
	assert.True(t, mr.TTL(key(ScopeOTP, "7")) > 0)

	// other scopes and accounts are independent
	assert.NoError(t, a.Reserve(ctx, ScopePassword, "7"))
	assert.NoError(t, a.Reserve(ctx, ScopeOTP, "8"))
}

func TestAttemptsConcurrentGuesses(t *testing.T) {
	a, mr := newAttempts(t, 5)
	ctx := context.Background()

	var passed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if a.Reserve(ctx, ScopeOTP, "42") == nil {
				passed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), passed.Load())
	v, err := mr.Get(key(ScopeOTP, "42"))
	require.NoError(t, err)
	assert.Equal(t, "50", v)
}

func TestAttemptsWindowExpires(t *testing.T) {
	a, mr := newAttempts(t, 1)
	ctx := context.Background()

	require.NoError(t, a.Reserve(ctx, ScopeLogin, "a@x.com"))
	require.Error(t, a.Reserve(ctx, ScopeLogin, "a@x.com"))

	// rejected attempts do not extend the window
	mr.FastForward(61 * time.Second)
	assert.NoError(t, a.Reserve(ctx, ScopeLogin, "a@x.com"))
}

func TestAttemptsReset(t *testing.T) {
	a, _ := newAttempts(t, 1)
	ctx := context.Background()

	require.NoError(t, a.Reserve(ctx, ScopeOTP, "1"))
	require.NoError(t, a.Reset(ctx, ScopeOTP, "1"))
	assert.NoError(t, a.Reserve(ctx, ScopeOTP, "1"))
}

func TestAttemptsRedisDown(t *testing.T) {
	a, mr := newAttempts(t, 1)
	mr.Close()
	err := a.Reserve(context.Background(), ScopeOTP, "1")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestNoop(t *testing.T) {
	var l Limiter = Noop{}
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Reserve(context.Background(), ScopeOTP, "1"))
	}
}
