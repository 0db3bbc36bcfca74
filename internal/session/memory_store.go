package session

import (
	"context"
	"time"

	"github.com/aryan0dhankhar/academyportal/internal/domain"
	"github.com/aryan0dhankhar/academyportal/pkg/cache"
)

// MemoryStore keeps session records in process memory. Records are lost on restart.
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore creates an in-memory store reading time from now (time.Now when nil).
func NewMemoryStore(now func() time.Time) *MemoryStore {
	return &MemoryStore{cache: cache.NewWithClock(now)}
}

func (s *MemoryStore) Save(_ context.Context, rec Record, ttl time.Duration) error {
	s.cache.Set(KeyFor(rec.Token), rec, ttl)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, token string) (*Record, error) {
	v, ok := s.cache.Get(KeyFor(token))
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec := v.(Record)
	return &rec, nil
}

func (s *MemoryStore) Mirror(_ context.Context, token string, identity *domain.Identity) error {
	// check and write happen under one lock so a concurrent Clear is never undone
	ok := s.cache.Update(KeyFor(token), func(v interface{}) interface{} {
		rec := v.(Record)
		rec.Identity = identity
		return rec
	})
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, token string) error {
	s.cache.Delete(KeyFor(token))
	return nil
}

// Sweep drops expired records and reports how many remain.
func (s *MemoryStore) Sweep() (removed, remaining int) {
	removed = s.cache.Purge()
	return removed, s.cache.Len()
}
