package middleware

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/rental-bookings/pkg/logger"
	"github.com/diagnosis/rental-bookings/pkg/response"
)

// Counter increments a fixed-window counter and returns the new count.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimitConfig defines rate limiting parameters
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	KeyFunc  func(r *http.Request) []string
	SkipFunc func(r *http.Request) bool
}

type RateLimiter struct {
	counter Counter
	config  RateLimitConfig
}

func NewRateLimiter(counter Counter, config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = ClientIPKeyFunc
	}
	return &RateLimiter{counter: counter, config: config}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.config.SkipFunc != nil && rl.config.SkipFunc(r) {
				next.ServeHTTP(w, r)
				return
			}

			for _, key := range rl.config.KeyFunc(r) {
				if !rl.allow(r.Context(), key) {
					response.RateLimit(w, "Too many requests. Try again later.")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	sum := sha256.Sum256([]byte(key))
	count, err := rl.counter.Incr(ctx, fmt.Sprintf("ratelimit:%x", sum), rl.config.Window)
	if err != nil {
		// fail open
		logger.WarnContext(ctx, "Rate limit check failed", "error", err)
		return true
	}
	return count <= int64(rl.config.Requests)
}

// ClientIPKeyFunc rate limits by client address.
func ClientIPKeyFunc(r *http.Request) []string {
	if ip := getClientIP(r); ip != "" {
		return []string{"ip:" + ip}
	}
	return nil
}

// WalletKeyFunc rate limits by the authenticated wallet, falling back to IP.
func WalletKeyFunc(r *http.Request) []string {
	if wallet, ok := r.Context().Value(logger.WalletKey).(string); ok && wallet != "" {
		return []string{"wallet:" + strings.ToLower(wallet)}
	}
	return ClientIPKeyFunc(r)
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
