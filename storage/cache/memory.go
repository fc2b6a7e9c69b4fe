package cache

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/darasa/core"
)

var NowFunc = time.Now // mockable

// MemoryRevocationStore keeps the revoked token IDs in the process. Used by tests and single-instance setups.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time // {jti: expiry}
}

var _ core.TokenRevocationStore = (*MemoryRevocationStore)(nil) // interface compliance check

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{revoked: make(map[string]time.Time)}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := NowFunc()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, exp := range s.revoked {
		if !now.Before(exp) {
			delete(s.revoked, id)
		}
	}
	s.revoked[jti] = now.Add(ttl)
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[jti]
	return ok && NowFunc().Before(exp), nil
}
