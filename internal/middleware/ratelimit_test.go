package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slava-lu/auth-app-backend/internal/httpx"
)

func TestIPLimiter(t *testing.T) {
	l := NewIPLimiter(IPLimiterConfig{Rate: 1, Burst: 2, CleanupInterval: time.Minute}, httpx.Renderer{}, nil)
	defer l.Stop()
	h := l.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	call := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login/local", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1001").Code)
	rec := call("10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// other clients are unaffected
	assert.Equal(t, http.StatusNoContent, call("10.0.0.2:1000").Code)
	assert.Equal(t, 2, l.Count())
}

func TestIPLimiterForwardedFor(t *testing.T) {
	l := NewIPLimiter(IPLimiterConfig{Rate: 1, Burst: 1, TrustProxy: true}, httpx.Renderer{}, nil)
	defer l.Stop()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", l.clientIP(req))
}

func TestIPLimiterCleanup(t *testing.T) {
	l := NewIPLimiter(IPLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute}, httpx.Renderer{}, nil)
	defer l.Stop()
	l.get("10.0.0.1")
	l.cleanup(time.Now().Add(3 * time.Minute))
	assert.Equal(t, 0, l.Count())
}
