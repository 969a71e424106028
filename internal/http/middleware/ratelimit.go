package middleware

import (
	"net/http"
	"sync"
	"time"

	"intake-service/internal/common/auth"
	"intake-service/internal/common/errors"
	"intake-service/internal/http/response"
)

type Limiter interface {
	Allow(key string, limit int, window time.Duration) bool
}

// RateLimiter is the single-process fallback used without Redis.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	now     func() time.Time
}

type rateBucket struct {
	count     int
	windowEnd time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*rateBucket), now: time.Now}
}

func (r *RateLimiter) Allow(key string, limit int, window time.Duration) bool {
	if limit <= 0 || window <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	bucket, ok := r.buckets[key]
	if !ok || now.After(bucket.windowEnd) {
		r.buckets[key] = &rateBucket{count: 1, windowEnd: now.Add(window)}
		return true
	}
	if bucket.count >= limit {
		return false
	}
	bucket.count++
	return true
}

// RateLimit throttles per principal. It must run after Authenticate; requests
// without a principal pass through.
func RateLimit(limiter Limiter, scope string, limit int, window time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFromContext(r.Context())
			if !ok || p.ApplicantID == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.Allow("intake:rl:"+scope+":"+p.ApplicantID, limit, window) {
				response.Error(w, errors.NewRateLimitedError(scope+" limit reached, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
