package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/4koushik4/pdf-compressor-backend/internal/app/system"
	"github.com/4koushik4/pdf-compressor-backend/internal/httputil"
	"github.com/4koushik4/pdf-compressor-backend/pkg/logger"
)

// cleanupInterval is how often the limiter table is checked for trimming.
const cleanupInterval = 5 * time.Minute

// RateLimiter provides per-client token bucket rate limiting keyed by IP.
// It is lifecycle-managed so the periodic cleanup stops with the service.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
	log      *logger.Logger

	stop chan struct{}
	done chan struct{}
}

var _ system.Service = (*RateLimiter)(nil)

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(requestsPerSecond int, burst int, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.NewDefault("ratelimit")
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		log:      log,
	}
}

func (rl *RateLimiter) Name() string { return "rate-limiter" }

// Start launches the periodic limiter-table cleanup.
func (rl *RateLimiter) Start(ctx context.Context) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.stop != nil {
		return nil
	}
	rl.stop = make(chan struct{})
	rl.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-stop:
				return
			}
		}
	}(rl.stop, rl.done)
	return nil
}

// Stop halts the cleanup goroutine.
func (rl *RateLimiter) Stop(ctx context.Context) error {
	rl.mu.Lock()
	stop, done := rl.stop, rl.done
	rl.stop, rl.done = nil, nil
	rl.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// getLimiter returns a rate limiter for the given client key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}

	return limiter
}

// Handler returns the rate limiting middleware handler.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ClientIP(r)

		if !rl.getLimiter(key).Allow() {
			rl.log.WithField("client", key).
				WithField("path", r.URL.Path).
				Warn("rate limit exceeded")
			httputil.TooManyRequests(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Cleanup drops the limiter table when it grows unreasonably large.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.limiters) > 10000 {
		rl.limiters = make(map[string]*rate.Limiter)
	}
}

// ClientIP extracts the originating client address from a request.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first IP in the list
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
