package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ruvnet/parsec/internal/config"
	parsecerrors "github.com/ruvnet/parsec/internal/errors"
)

// RateLimiter hands out a token-bucket limiter per key (client IP or
// operator id), matching cfg's requests-per-minute/burst budget.
type RateLimiter struct {
	mu       sync.Mutex
	cfg      config.RateLimitConfig
	limiters map[string]*rate.Limiter
}

// NewRateLimiter builds a RateLimiter from cfg.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{cfg: cfg, limiters: make(map[string]*rate.Limiter)}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.limiters[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(float64(rl.cfg.RequestsPerMinute)/60), rl.cfg.Burst)
	rl.limiters[key] = l
	return l
}

func tooManyRequests(c *gin.Context, code parsecerrors.ErrorCode, message string) {
	c.Header("Retry-After", "1")
	c.JSON(http.StatusTooManyRequests, parsecerrors.New(code, message))
	c.Abort()
}

// RateLimit applies cfg's budget per client IP.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	rl := NewRateLimiter(cfg)
	return func(c *gin.Context) {
		limiter := rl.getLimiter(c.ClientIP())
		c.Header("X-Rate-Limit-Limit", strconv.Itoa(cfg.RequestsPerMinute))
		if !limiter.Allow() {
			tooManyRequests(c, parsecerrors.RateLimited, "rate limit exceeded")
			return
		}
		c.Next()
	}
}

// OperatorRateLimit applies cfg's budget per authenticated operator,
// falling back to client-IP keying for unauthenticated requests.
func OperatorRateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	rl := NewRateLimiter(cfg)
	return func(c *gin.Context) {
		key := c.ClientIP()
		if id, ok := GetOperatorID(c); ok {
			key = fmt.Sprintf("operator:%s", id)
		}
		if !rl.getLimiter(key).Allow() {
			tooManyRequests(c, parsecerrors.RateLimited, "operator rate limit exceeded")
			return
		}
		c.Next()
	}
}

// EndpointRateLimit applies an independent budget per method+route,
// for endpoints (e.g. gossip ingestion) that need stricter limits
// than the ops surface default.
func EndpointRateLimit(requestsPerMinute, burst int) gin.HandlerFunc {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerMinute: requestsPerMinute, Burst: burst})
	return func(c *gin.Context) {
		key := fmt.Sprintf("endpoint:%s:%s", c.Request.Method, c.FullPath())
		if !rl.getLimiter(key).Allow() {
			tooManyRequests(c, parsecerrors.RateLimited, "endpoint rate limit exceeded")
			return
		}
		c.Next()
	}
}
