package routes

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	corsAllowOrigin  = "*"
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
	apiKeyHeader     = "X-API-Key"
)

// CORS sets the headers browsers need to call the relay from any origin.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", corsAllowOrigin)
		c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
		c.Next()
	}
}

// APIKey rejects requests without the shared secret. An empty key disables
// the check.
func APIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := c.GetHeader(apiKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// limiterIdleTTL is how long an IP's limiter survives without requests.
const limiterIdleTTL = 10 * time.Minute

// IPRateLimiter stores a rate limiter for each IP address. Limiters idle for
// longer than the TTL are evicted.
type IPRateLimiter struct {
	ips *cache.Cache
	mu  sync.Mutex
	ttl time.Duration
	r   rate.Limit
	b   int
}

// NewIPRateLimiter creates a new IPRateLimiter.
func NewIPRateLimiter(r rate.Limit, b int, idle time.Duration) *IPRateLimiter {
	if idle <= 0 {
		idle = limiterIdleTTL
	}
	return &IPRateLimiter{
		ips: cache.New(idle, idle),
		ttl: idle,
		r:   r,
		b:   b,
	}
}

// GetLimiter returns the rate limiter for an IP address, creating it on first
// use. Every call pushes the entry's expiry back by the idle TTL.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, ok := i.lookup(ip)
	if !ok {
		limiter = rate.NewLimiter(i.r, i.b)
	}
	i.ips.Set(ip, limiter, i.ttl)
	return limiter
}

func (i *IPRateLimiter) lookup(ip string) (*rate.Limiter, bool) {
	v, ok := i.ips.Get(ip)
	if !ok {
		return nil, false
	}
	return v.(*rate.Limiter), true
}

// Len reports how many IPs currently hold a limiter.
func (i *IPRateLimiter) Len() int {
	return i.ips.ItemCount()
}

// RateLimiter limits requests per client IP. A non-positive limit disables it.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	if r <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if b <= 0 {
		b = 1
	}
	limiter := NewIPRateLimiter(r, b, limiterIdleTTL)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// Recovery turns a panic into a 500 JSON body.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("handler panicked", slog.String("path", c.FullPath()), slog.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal error",
			"details": fmt.Sprint(recovered),
		})
	})
}

// RequestLogger logs one line per request.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)))
	}
}
