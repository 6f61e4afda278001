package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_FixedWindow(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return clock }
	ctx := context.Background()

	ok, remaining, err := rl.Take(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)

	ok, remaining, _ = rl.Take(ctx, "ip:10.0.0.1")
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)

	ok, _, _ = rl.Take(ctx, "ip:10.0.0.1")
	assert.False(t, ok)

	ok, _, _ = rl.Take(ctx, "ip:10.0.0.2")
	assert.True(t, ok, "budgets are per key")

	clock = clock.Add(time.Minute)
	ok, remaining, _ = rl.Take(ctx, "ip:10.0.0.1")
	assert.True(t, ok, "a new window restores the budget")
	assert.Equal(t, 1, remaining)
}

func TestRateLimit_PerCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			c.Set(JWTUserIDKey, id)
		}
		c.Next()
	})
	r.Use(RateLimit(NewRateLimiter(1, time.Hour)))
	r.GET("/orders", func(c *gin.Context) { c.Status(http.StatusOK) })

	get := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		if user != "" {
			req.Header.Set("X-Test-User", user)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := get("alice")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = get("alice")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errorCode(t, w))

	assert.Equal(t, http.StatusOK, get("bob").Code, "authenticated callers are limited by user, not by IP")
	assert.Equal(t, http.StatusOK, get("").Code)
	assert.Equal(t, http.StatusTooManyRequests, get("").Code)
}

func TestAuthRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/auth/login", AuthRateLimit(NewRateLimiter(1, time.Minute)), func(c *gin.Context) { c.Status(http.StatusOK) })

	login := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		return w
	}
	assert.Equal(t, http.StatusOK, login().Code)
	w := login()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "AUTH_RATE_LIMIT_EXCEEDED", errorCode(t, w))
}

func TestRateLimit_RedisOutageFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.Use(RateLimit(NewRedisRateLimiter(client, "", 1, time.Minute)))
	r.GET("/products", func(c *gin.Context) { c.Status(http.StatusOK) })

	for range 3 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}
