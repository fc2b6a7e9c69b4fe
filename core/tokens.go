package core

import (
	"context"
	"time"
)

// TokenRevocationStore remembers the revoked JWT IDs until the tokens expire.
type TokenRevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
