package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per key in Redis so the limit holds across
// instances, not per process. Counters live under a TTL window.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRateLimiter allows limit requests per window for each key. A nil client
// disables limiting.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

// Allow reports whether the request identified by key is within the limit.
// Redis trouble fails open.
func (rl *RateLimiter) Allow(ctx context.Context, key string) bool {
	if rl == nil || rl.client == nil {
		return true
	}
	counter := "ratelimit:" + key
	count, err := rl.client.Incr(ctx, counter).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		rl.client.Expire(ctx, counter, rl.window)
	}
	return count <= int64(rl.limit)
}

// RateLimit returns an HTTP middleware that rejects requests exceeding the
// per-IP limit with 429 Too Many Requests.
func RateLimit(client *redis.Client, limit int, window time.Duration) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(client, limit, window)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			// Proxies may carry the client address in X-Real-Ip.
			if xri := r.Header.Get("X-Real-Ip"); xri != "" {
				ip = xri
			}
			if !limiter.Allow(r.Context(), ip) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
