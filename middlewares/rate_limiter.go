package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu       sync.Mutex
	visitors map[string]*visitor
}

// NewRateLimiter allows perMinute requests per minute per IP, with bursts of
// the same size.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		ttl:      10 * time.Minute,
		visitors: make(map[string]*visitor),
	}
}

func (rl *RateLimiter) get(ip string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for k, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.ttl {
			delete(rl.visitors, k)
		}
	}
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.get(c.ClientIP(), time.Now()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Demasiados intentos, espere un momento",
			})
			return
		}
		c.Next()
	}
}
