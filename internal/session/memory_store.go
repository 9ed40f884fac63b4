package session

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

const memoryKey = "session"

// MemoryStore keeps the session in process memory, expiring it together with
// its token.
type MemoryStore struct {
	cache *cache.Cache
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, 10*time.Minute),
		now:   time.Now,
	}
}

func (m *MemoryStore) Load(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	v, ok := m.cache.Get(memoryKey)
	if !ok {
		return Session{}, ErrNoSession
	}
	return v.(Session), nil
}

func (m *MemoryStore) Save(ctx context.Context, s Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.cache.Set(memoryKey, s, ttlFor(s, m.now()))
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.cache.Delete(memoryKey)
	return nil
}

// ttlFor returns the remaining token lifetime, or no expiry when unknown.
func ttlFor(s Session, now time.Time) time.Duration {
	if s.ExpiresAt.IsZero() {
		return cache.NoExpiration
	}
	ttl := s.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return time.Millisecond
	}
	return ttl
}
