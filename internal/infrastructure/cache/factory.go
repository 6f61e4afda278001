package cache

import (
	"context"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stores groups the Redis-backed components the server needs. Webhook
// deduplication lives in the payment_webhooks table, not here. When Redis is
// unreachable and fallback is allowed, every store is in-memory and Client is nil.
type Stores struct {
	Client           *redis.Client
	EventIdempotency shared.IdempotencyStore
}

// Close releases all stores and the shared client
func (s *Stores) Close() error {
	_ = s.EventIdempotency.Close()
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}

// Ping reports Redis health; in-memory stores are always healthy
func (s *Stores) Ping(ctx context.Context) error {
	if s.Client == nil {
		return nil
	}
	return s.Client.Ping(ctx).Err()
}

// NewStores connects to Redis and builds the idempotency stores. In-memory
// fallback is only used when allowFallback is set (never in production).
func NewStores(ctx context.Context, cfg config.RedisConfig, allowFallback bool, logger *zap.Logger) (*Stores, error) {
	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		if !allowFallback {
			return nil, err
		}
		logger.Warn("Redis unavailable, falling back to in-memory stores; "+
			"duplicate processing is possible across instances",
			zap.Error(err),
		)
		return &Stores{
			EventIdempotency: NewInMemoryIdempotencyStore(),
		}, nil
	}

	logger.Info("using Redis idempotency stores", zap.String("addr", cfg.Addr()))
	return &Stores{
		Client:           client,
		EventIdempotency: NewRedisIdempotencyStoreWithClient(client, EventIdempotencyPrefix),
	}, nil
}
