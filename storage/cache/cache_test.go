package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRevocationStore(t *testing.T) {
	defer func() { NowFunc = time.Now }()
	now := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	NowFunc = func() time.Time { return now }

	store := NewMemoryRevocationStore()
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "a", time.Minute))
	require.NoError(t, store.Revoke(ctx, "expired", 0))

	revoked, _ := store.IsRevoked(ctx, "a")
	assert.True(t, revoked)
	revoked, _ = store.IsRevoked(ctx, "expired")
	assert.False(t, revoked)
	revoked, _ = store.IsRevoked(ctx, "unknown")
	assert.False(t, revoked)

	now = now.Add(time.Minute)
	revoked, _ = store.IsRevoked(ctx, "a")
	assert.False(t, revoked, "revocation ends with the token lifetime")

	require.NoError(t, store.Revoke(ctx, "b", time.Minute))
	assert.Len(t, store.revoked, 1, "expired entries are purged")
}

func TestRedisRevocationStore(t *testing.T) {
	addr := os.Getenv("DARASA_TEST_REDIS_ADDRESS")
	if addr == "" {
		t.Skip("DARASA_TEST_REDIS_ADDRESS not set")
	}
	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, addr)
	require.NoError(t, err)
	defer rdb.Close()

	store := NewRedisRevocationStore(rdb)
	jti := uuid.New().String()

	revoked, err := store.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, jti, time.Minute))
	revoked, err = store.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl, err := rdb.TTL(ctx, revokedTokenPrefix+jti).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute)
}
