package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/cryptonexus/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// Key prefixes for the stores sharing one Redis database
const (
	EventIdempotencyPrefix = "event:idempotency:"
	RateLimitPrefix        = "ratelimit:"
	AuthRateLimitPrefix    = "ratelimit:auth:"
)

// NewRedisClient opens a Redis client and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 3,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}
