package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"saintplus-client/internal/shared/server/respond"
)

const limiterIdleTTL = 10 * time.Minute

// RateLimitRule allows Rate requests per second with bursts up to Burst.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

// RateLimiter keeps one limiter per client and route group. Clients idle
// for limiterIdleTTL are forgotten.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	now       func() time.Time
	lastSweep time.Time
}

type clientLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{clients: make(map[string]*clientLimiter), now: now}
}

// RateLimit throttles a route group per signed-in user, or per client IP
// before sign-in.
func RateLimit(group string, rule RateLimitRule, limiter *RateLimiter) gin.HandlerFunc {
	if limiter == nil {
		limiter = NewRateLimiter(nil)
	}
	return func(c *gin.Context) {
		who := strings.TrimSpace(UserIDFromContext(c))
		if who == "" {
			who = "ip:" + c.ClientIP()
		}
		ok, wait := limiter.Allow(group+"|"+who, rule)
		if ok {
			c.Next()
			return
		}

		waitMs := wait.Milliseconds()
		if waitMs <= 0 {
			waitMs = 1000
		}
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(float64(waitMs)/1000))))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "요청이 너무 많습니다. 잠시 후 다시 시도해 주세요.", map[string]any{
			"retryAfterMs": waitMs,
		})
	}
}

// Allow takes one token for key. When denied it reports how long until the
// next token.
func (l *RateLimiter) Allow(key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil || rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	l.sweepLocked(now)
	cl, ok := l.clients[key]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(rate.Limit(rule.Rate), rule.Burst)}
		l.clients[key] = cl
	}
	cl.seen = now
	l.mu.Unlock()

	if cl.lim.AllowN(now, 1) {
		return true, 0
	}
	r := cl.lim.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return false, wait
}

func (l *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now
	for k, cl := range l.clients {
		if now.Sub(cl.seen) > limiterIdleTTL {
			delete(l.clients, k)
		}
	}
}
