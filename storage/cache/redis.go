// Package cache holds the short-lived state shared by the API instances.
package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

const revokedTokenPrefix = "revoked_token:"

type redisRevocationStore struct {
	rdb *redis.Client
}

var _ core.TokenRevocationStore = (*redisRevocationStore)(nil) // interface compliance check

// NewRedisClient connects to `addr` and checks the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

func NewRedisRevocationStore(rdb *redis.Client) *redisRevocationStore {
	return &redisRevocationStore{rdb: rdb}
}

func (s *redisRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // already expired
	}
	err := s.rdb.Set(ctx, revokedTokenPrefix+jti, "1", ttl).Err()
	return errors.Wrap(err, "revoking token")
}

func (s *redisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, revokedTokenPrefix+jti).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking revoked token")
	}
	return n > 0, nil
}
