package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/httpx"
)

// IPLimiterConfig configures per client IP throttling.
type IPLimiterConfig struct {
	Rate            rate.Limit
	Burst           int
	CleanupInterval time.Duration
	// TrustProxy takes the client address from the first X-Forwarded-For hop.
	TrustProxy bool
}

// DefaultIPLimiterConfig allows perMinute requests per IP with burst.
func DefaultIPLimiterConfig(perMinute float64, burst int) IPLimiterConfig {
	return IPLimiterConfig{
		Rate:            rate.Limit(perMinute / 60.0),
		Burst:           burst,
		CleanupInterval: 5 * time.Minute,
	}
}

type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// IPLimiter throttles the public auth routes per client IP.
type IPLimiter struct {
	config IPLimiterConfig
	render httpx.Renderer
	logger *zap.SugaredLogger

	mu       sync.Mutex
	limiters map[string]*ipLimiter

	stopCh chan struct{}
	once   sync.Once
}

// NewIPLimiter starts the background cleanup of idle entries.
func NewIPLimiter(config IPLimiterConfig, render httpx.Renderer, logger *zap.SugaredLogger) *IPLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	l := &IPLimiter{
		config:   config,
		render:   render,
		logger:   logger,
		limiters: make(map[string]*ipLimiter),
		stopCh:   make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Stop ends the cleanup goroutine.
func (l *IPLimiter) Stop() { l.once.Do(func() { close(l.stopCh) }) }

// Count is the number of tracked addresses.
func (l *IPLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *IPLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := l.clientIP(r)
			if !l.get(ip).Allow() {
				retry := int(math.Ceil(1.0 / float64(l.config.Rate)))
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				l.logger.Warnw("ip rate limit exceeded", "ip", ip, "path", r.URL.Path)
				l.render.Error(w, r, apperr.ErrTooManyAttempts)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *IPLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.limiters[ip]
	if !ok {
		e = &ipLimiter{limiter: rate.NewLimiter(l.config.Rate, l.config.Burst)}
		l.limiters[ip] = e
	}
	e.lastAccess = time.Now()
	return e.limiter
}

func (l *IPLimiter) clientIP(r *http.Request) string {
	if l.config.TrustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (l *IPLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now())
		case <-l.stopCh:
			return
		}
	}
}

// cleanup drops entries idle for two cleanup intervals.
func (l *IPLimiter) cleanup(now time.Time) {
	ttl := l.config.CleanupInterval * 2
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, e := range l.limiters {
		if now.Sub(e.lastAccess) > ttl {
			delete(l.limiters, ip)
		}
	}
}
