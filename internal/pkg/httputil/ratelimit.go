package httputil

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// UserRateLimiter limits requests per authenticated user.
type UserRateLimiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	limiters  map[string]*userLimiter
	lastPrune time.Time
	now       func() time.Time
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUserRateLimiter creates a limiter allowing rps requests per second with the given burst per user.
func NewUserRateLimiter(rps float64, burst int) *UserRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &UserRateLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*userLimiter),
		now:      time.Now,
	}
}

// Allow reports whether userID may perform one more request now.
func (l *UserRateLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPrune) > limiterIdleTTL {
		for id, ul := range l.limiters {
			if now.Sub(ul.lastSeen) > limiterIdleTTL {
				delete(l.limiters, id)
			}
		}
		l.lastPrune = now
	}

	ul, ok := l.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[userID] = ul
	}
	ul.lastSeen = now

	return ul.limiter.AllowN(now, 1)
}

// Middleware rejects requests over the limit with 429.
// Must run after AuthMiddleware; anonymous requests pass through.
func (l *UserRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := GetUserID(r.Context())
		if userID != "" && !l.Allow(userID) {
			w.Header().Set("Retry-After", "1")
			Error(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
