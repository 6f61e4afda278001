package auth

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ TokenBlacklist = (*InMemoryTokenBlacklist)(nil)
	_ TokenBlacklist = (*RedisTokenBlacklist)(nil)
)

func TestInMemoryTokenBlacklist_JTIExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	b := NewInMemoryTokenBlacklist()
	b.now = func() time.Time { return now }

	require.NoError(t, b.AddToBlacklist(ctx, "jti-logout", time.Hour))
	require.NoError(t, b.AddToBlacklist(ctx, "jti-rotated", time.Minute))

	check := func(jti string) bool {
		revoked, err := b.IsBlacklisted(ctx, jti)
		require.NoError(t, err)
		return revoked
	}
	assert.True(t, check("jti-logout"))
	assert.True(t, check("jti-rotated"))
	assert.False(t, check("jti-unknown"))

	now = now.Add(time.Minute)
	assert.False(t, check("jti-rotated"), "entry lives exactly as long as the token")
	assert.True(t, check("jti-logout"))
	assert.Len(t, b.entries, 1)
}

func TestInMemoryTokenBlacklist_UserRevocation(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 500_000_000, time.UTC)
	b := NewInMemoryTokenBlacklist()
	b.now = func() time.Time { return now }

	invalidated := func(user string, issuedAt time.Time) bool {
		got, err := b.IsUserTokenInvalidated(ctx, user, issuedAt)
		require.NoError(t, err)
		return got
	}

	assert.False(t, invalidated("buyer-1", now.Add(-time.Hour)))
	require.NoError(t, b.AddUserTokensToBlacklist(ctx, "buyer-1", 24*time.Hour))

	assert.True(t, invalidated("buyer-1", now.Add(-time.Hour)))
	assert.True(t, invalidated("buyer-1", now.Truncate(time.Second)), "same-second iat is rejected")
	assert.False(t, invalidated("buyer-1", now.Add(time.Second)))
	assert.False(t, invalidated("buyer-2", now.Add(-time.Hour)))

	now = now.Add(24 * time.Hour)
	assert.False(t, invalidated("buyer-1", now.Add(-25*time.Hour)), "revocation expires with the refresh ttl")
}

func TestRedisTokenBlacklist_OutageIsAnError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	b := NewRedisTokenBlacklist(client)
	ctx := context.Background()

	assert.Error(t, b.AddToBlacklist(ctx, "jti", time.Minute))
	assert.Error(t, b.AddUserTokensToBlacklist(ctx, "buyer-1", time.Minute))

	revoked, err := b.IsBlacklisted(ctx, "jti")
	assert.Error(t, err)
	assert.False(t, revoked)

	invalidated, err := b.IsUserTokenInvalidated(ctx, "buyer-1", time.Now())
	assert.ErrorContains(t, err, "check tokens of user buyer-1")
	assert.False(t, invalidated)
}

func TestBlacklistKeys(t *testing.T) {
	assert.Equal(t, "token:blacklist:jti:abc", jtiKey("abc"))
	assert.Equal(t, "token:blacklist:user:42", userKey("42"))
}
