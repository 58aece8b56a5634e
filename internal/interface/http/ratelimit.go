package http

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/nutriai/internal/infra/config"
)

const healthPath = "/healthz"

// rateLimitMiddleware gives each client IP a token bucket of cfg.Burst
// requests refilled at cfg.RequestsPerMinute. Liveness checks are never
// throttled.
func rateLimitMiddleware(cfg config.RateLimitConfig, logger *slog.Logger) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RequestsPerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	buckets := newClientBuckets(cfg)
	limit := strconv.Itoa(buckets.capacity)
	return func(c *gin.Context) {
		if c.Request.URL.Path == healthPath {
			c.Next()
			return
		}

		ip := c.ClientIP()
		decision := buckets.take(ip)
		headers := c.Writer.Header()
		headers.Set("X-RateLimit-Limit", limit)
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.remaining))
		if decision.allowed {
			c.Next()
			return
		}

		retryAfter := int(math.Ceil(decision.retryAfter.Seconds()))
		headers.Set("Retry-After", strconv.Itoa(retryAfter))
		logger.Warn("rate limit exceeded", "ip", ip, "path", c.Request.URL.Path, "retry_after_s", retryAfter)
		abortWithError(c, NewHTTPError(http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests", nil))
	}
}

type rateDecision struct {
	allowed    bool
	remaining  int
	retryAfter time.Duration
}

type bucket struct {
	tokens  float64
	updated time.Time
}

// clientBuckets holds one bucket per key. Buckets idle longer than idleAfter
// are swept at most once per idleAfter.
type clientBuckets struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	capacity  int
	perMinute float64
	idleAfter time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newClientBuckets(cfg config.RateLimitConfig) *clientBuckets {
	return &clientBuckets{
		buckets:   make(map[string]*bucket),
		capacity:  max(cfg.Burst, 1),
		perMinute: float64(cfg.RequestsPerMinute),
		idleAfter: 5 * time.Minute,
		now:       time.Now,
	}
}

func (b *clientBuckets) take(key string) rateDecision {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.sweepLocked(now)

	bk, ok := b.buckets[key]
	if !ok {
		bk = &bucket{tokens: float64(b.capacity), updated: now}
		b.buckets[key] = bk
	} else if elapsed := now.Sub(bk.updated); elapsed > 0 {
		bk.tokens = math.Min(float64(b.capacity), bk.tokens+elapsed.Minutes()*b.perMinute)
		bk.updated = now
	}

	if bk.tokens < 1 {
		wait := time.Duration(float64(time.Minute) * (1 - bk.tokens) / b.perMinute)
		return rateDecision{retryAfter: wait}
	}
	bk.tokens--
	return rateDecision{allowed: true, remaining: int(bk.tokens)}
}

func (b *clientBuckets) sweepLocked(now time.Time) {
	if now.Sub(b.lastSweep) < b.idleAfter {
		return
	}
	b.lastSweep = now
	for key, bk := range b.buckets {
		if now.Sub(bk.updated) > b.idleAfter {
			delete(b.buckets, key)
		}
	}
}
