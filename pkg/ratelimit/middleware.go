package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"wisegate/internal/config"
	"wisegate/pkg/metrics"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimitConfig struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
	// Exempt paths bypass the limiter.
	Exempt []string
}

func DefaultConfig() RateLimitConfig {
	return RateLimitConfig{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
		Exempt:          []string{"/health", "/metrics", "/ws"},
	}
}

// FromConfig fills unset fields from DefaultConfig. Intervals are seconds.
func FromConfig(cfg config.RateLimitConfig) RateLimitConfig {
	out := DefaultConfig()
	if cfg.RPS > 0 {
		out.RPS = cfg.RPS
	}
	if cfg.Burst > 0 {
		out.Burst = cfg.Burst
	}
	if cfg.CleanupInterval > 0 {
		out.CleanupInterval = time.Duration(cfg.CleanupInterval) * time.Second
	}
	if cfg.MaxAge > 0 {
		out.MaxAge = time.Duration(cfg.MaxAge) * time.Second
	}
	return out
}

// clients holds one token bucket per client IP.
type clients struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	cfg      RateLimitConfig
}

func (c *clients) allow(ip string, now time.Time) (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[ip]
	if !ok {
		l = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(c.cfg.RPS), c.cfg.Burst)}
		c.limiters[ip] = l
	}
	l.lastSeen = now

	if !l.limiter.AllowN(now, 1) {
		return false, 0
	}
	remaining := int(l.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining
}

func (c *clients) evictIdle(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ip, l := range c.limiters {
		if now.Sub(l.lastSeen) > c.cfg.MaxAge {
			delete(c.limiters, ip)
		}
	}
}

func (c *clients) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.limiters)
}

// RateLimitMiddleware limits dashboard and push requests per client IP.
// Idle limiters are evicted until ctx is done.
func RateLimitMiddleware(ctx context.Context, cfg RateLimitConfig) gin.HandlerFunc {
	store := &clients{limiters: make(map[string]*clientLimiter), cfg: cfg}
	exempt := make(map[string]bool, len(cfg.Exempt))
	for _, p := range cfg.Exempt {
		exempt[p] = true
	}

	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				store.evictIdle(now)
			}
		}
	}()

	limit := formatRate(cfg.RPS)
	return func(c *gin.Context) {
		if exempt[c.Request.URL.Path] {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			ip = c.RemoteIP()
		}

		c.Header("X-RateLimit-Limit", limit)
		allowed, remaining := store.allow(ip, time.Now())
		if !allowed {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"error_code": "RATE_LIMIT_EXCEEDED",
			})
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Next()
	}
}

func formatRate(rps float64) string {
	return strconv.FormatFloat(rps, 'f', -1, 64)
}
