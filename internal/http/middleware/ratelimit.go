package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(*gin.Context) string

// KeyByUserOrIP charges authenticated callers per user and everyone else per
// client IP. The prefixes keep the two namespaces apart.
func KeyByUserOrIP(c *gin.Context) string {
	if uid := UserID(c); uid != "" {
		return "user:" + uid
	}
	return "ip:" + c.ClientIP()
}

// RateLimitOptions configures a RateLimiter.
type RateLimitOptions struct {
	RPS   float64 // tokens per second; 0 with Burst 1 allows one request ever
	Burst int     // bucket size; values < 1 become 1
	Key   KeyFunc // defaults to KeyByUserOrIP
	// Exempt requests are never charged, e.g. probes and signed webhook
	// deliveries that the provider retries on 429.
	Exempt func(*gin.Context) bool
	// IdleTTL evicts buckets not used for this long; defaults to 10 minutes.
	IdleTTL time.Duration
	Now     func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is an in-process token bucket per key. It is safe for
// concurrent use; for several replicas the limits apply per replica.
type RateLimiter struct {
	opts RateLimitOptions

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewRateLimiter applies defaults to opts and returns a limiter.
func NewRateLimiter(opts RateLimitOptions) *RateLimiter {
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	if opts.Key == nil {
		opts.Key = KeyByUserOrIP
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RateLimiter{
		opts:      opts,
		buckets:   make(map[string]*bucket),
		lastSweep: opts.Now(),
	}
}

// limiter returns the bucket for key. Idle buckets are dropped at most once
// per IdleTTL, before the lookup, so a stale bucket is never revived.
func (rl *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.opts.IdleTTL {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.opts.IdleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.lim
	}
	lim := rate.NewLimiter(rate.Limit(rl.opts.RPS), rl.opts.Burst)
	rl.buckets[key] = &bucket{lim: lim, lastSeen: now}
	return lim
}

// Len is the number of live buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// IsRateBypass reports whether IdempotencyValidator found a stored result for
// this request. Replays are answered without charging the caller.
func IsRateBypass(c *gin.Context) bool {
	b, _ := c.Value(ctxKeyRateBypass).(bool)
	return b
}

// Handler enforces the limit. Allowed requests carry X-RateLimit-Limit and
// X-RateLimit-Remaining; rejected ones get 429 rate_limited with a
// Retry-After rounded up to whole seconds.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	limit := strconv.Itoa(rl.opts.Burst)
	return func(c *gin.Context) {
		if IsRateBypass(c) || (rl.opts.Exempt != nil && rl.opts.Exempt(c)) {
			c.Next()
			return
		}

		now := rl.opts.Now()
		lim := rl.limiter(rl.opts.Key(c), now)
		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", limit)

		if lim.AllowN(now, 1) {
			h.Set("X-RateLimit-Remaining", strconv.Itoa(int(math.Max(0, lim.TokensAt(now)))))
			c.Next()
			return
		}

		h.Set("X-RateLimit-Remaining", "0")
		h.Set("Retry-After", strconv.Itoa(retryAfter(lim, now)))
		abortJSON(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
	}
}

// retryAfter is the whole number of seconds until one token is available,
// at least 1.
func retryAfter(lim *rate.Limiter, now time.Time) int {
	if lim.Limit() <= 0 {
		return 60
	}
	missing := 1 - lim.TokensAt(now)
	secs := int(math.Ceil(missing / float64(lim.Limit())))
	if secs < 1 {
		secs = 1
	}
	return secs
}
