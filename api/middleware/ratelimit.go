package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sitelens/config"
	"github.com/use-agent/sitelens/models"
	"golang.org/x/time/rate"
)

const (
	// bucketEvictInterval is how often idle token buckets are evicted.
	bucketEvictInterval = 5 * time.Minute

	// bucketIdleExpiry is how long a client's bucket survives without
	// traffic.
	bucketIdleExpiry = time.Hour
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit returns per-identity (API key or IP) token-bucket rate limiting
// middleware powered by golang.org/x/time/rate.
//
// Idle buckets are evicted by a background goroutine, preventing unbounded
// memory growth.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	var mu sync.Mutex
	buckets := make(map[string]*clientBucket)

	getLimiter := func(identity string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		b, ok := buckets[identity]
		if !ok {
			b = &clientBucket{
				limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
			}
			buckets[identity] = b
		}
		b.lastSeen = time.Now()
		return b.limiter
	}

	go func() {
		ticker := time.NewTicker(bucketEvictInterval)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-bucketIdleExpiry)
			mu.Lock()
			for id, b := range buckets {
				if b.lastSeen.Before(cutoff) {
					delete(buckets, id)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		// Prefer API key as identity (set by auth middleware); fall back to IP.
		identity, exists := c.Get("api_key")
		if !exists {
			identity = c.ClientIP()
		}

		limiter := getLimiter(identity.(string))
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "rate limit exceeded, please slow down",
				},
			})
			return
		}

		c.Next()
	}
}
