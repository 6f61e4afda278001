package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cryptonexus/backend/internal/infrastructure/logger"
	"github.com/cryptonexus/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter decides whether the request identified by key may proceed
type Limiter interface {
	// Take consumes one request from key's budget
	Take(ctx context.Context, key string) (allowed bool, remaining int, err error)
	Limit() int
	Window() time.Duration
}

// RateLimiter is a fixed-window limiter for a single instance, used when
// Redis is not configured
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	window  time.Duration
	now     func() time.Time
}

type window struct {
	start time.Time
	count int
}

// NewRateLimiter creates an in-memory limiter. Idle keys are swept every
// other window.
func NewRateLimiter(limit int, every time.Duration) *RateLimiter {
	rl := &RateLimiter{windows: make(map[string]*window), limit: limit, window: every, now: time.Now}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(2 * rl.window)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		cutoff := rl.now().Add(-2 * rl.window)
		for key, w := range rl.windows {
			if w.start.Before(cutoff) {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Take implements Limiter
func (rl *RateLimiter) Take(_ context.Context, key string) (bool, int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.window {
		w = &window{start: now}
		rl.windows[key] = w
	}
	if w.count >= rl.limit {
		return false, 0, nil
	}
	w.count++
	return true, rl.limit - w.count, nil
}

// Limit implements Limiter
func (rl *RateLimiter) Limit() int { return rl.limit }

// Window implements Limiter
func (rl *RateLimiter) Window() time.Duration { return rl.window }

// RedisRateLimiter is a fixed-window limiter shared by every API instance.
// Each window is one counter key that expires with the window.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewRedisRateLimiter creates a limiter over an existing client
func NewRedisRateLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisRateLimiter {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisRateLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Take implements Limiter
func (rl *RedisRateLimiter) Take(ctx context.Context, key string) (bool, int, error) {
	slot := time.Now().UnixNano() / int64(rl.window)
	redisKey := rl.prefix + key + ":" + strconv.FormatInt(slot, 10)

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit counter %q: %w", key, err)
	}

	count := int(incr.Val())
	remaining := max(rl.limit-count, 0)
	return count <= rl.limit, remaining, nil
}

// Limit implements Limiter
func (rl *RedisRateLimiter) Limit() int { return rl.limit }

// Window implements Limiter
func (rl *RedisRateLimiter) Window() time.Duration { return rl.window }

// rateLimitOptions controls the response of a rate limiting middleware
type rateLimitOptions struct {
	code    string
	message string
}

// RateLimit limits requests per caller: the JWT user when known, the
// client IP otherwise
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return rateLimit(limiter, func(c *gin.Context) string {
		if userID := GetJWTUserID(c); userID != "" {
			return "user:" + userID
		}
		return "ip:" + c.ClientIP()
	}, rateLimitOptions{
		code:    "RATE_LIMIT_EXCEEDED",
		message: "Too many requests. Please try again later.",
	})
}


// AuthRateLimit applies a stricter per-IP budget to login, registration
// and token refresh
func AuthRateLimit(limiter Limiter) gin.HandlerFunc {
	return rateLimit(limiter, func(c *gin.Context) string {
		return "auth:" + c.ClientIP()
	}, rateLimitOptions{
		code:    "AUTH_RATE_LIMIT_EXCEEDED",
		message: "Too many authentication attempts. Please try again later.",
	})
}

func rateLimit(limiter Limiter, keyFunc func(*gin.Context) string, opts rateLimitOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining, err := limiter.Take(c.Request.Context(), keyFunc(c))
		if err != nil {
			// fail open
			logger.FromContext(c.Request.Context()).Warn("Rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(limiter.Window().Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				dto.NewErrorResponseWithRequestID(opts.code, opts.message, requestIDOf(c)))
			return
		}

		c.Next()
	}
}
