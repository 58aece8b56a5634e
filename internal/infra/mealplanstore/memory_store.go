package mealplanstore

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/nutriai/internal/domain/mealplan"
)

type planRecord struct {
	payload   mealplan.CachedPlan
	expiresAt time.Time
}

// MemoryStore keeps generated plans in process memory for tests/dev.
type MemoryStore struct {
	mu    sync.RWMutex
	plans map[string]planRecord
	now   func() time.Time
}

// NewMemoryStore constructs a store backed by process memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans: make(map[string]planRecord),
		now:   time.Now,
	}
}

// Get implements mealplan.Store. Expired entries are evicted on read.
func (s *MemoryStore) Get(_ context.Context, key string) (mealplan.CachedPlan, bool, error) {
	if key == "" {
		return mealplan.CachedPlan{}, false, nil
	}
	s.mu.RLock()
	record, ok := s.plans[key]
	s.mu.RUnlock()
	if !ok {
		return mealplan.CachedPlan{}, false, nil
	}
	if s.hasExpired(record.expiresAt) {
		s.mu.Lock()
		delete(s.plans, key)
		s.mu.Unlock()
		return mealplan.CachedPlan{}, false, nil
	}
	return record.payload, true, nil
}

// Save caches the plan with optional TTL.
func (s *MemoryStore) Save(_ context.Context, plan mealplan.CachedPlan, ttl time.Duration) error {
	if plan.Key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp := time.Time{}
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.plans[plan.Key] = planRecord{
		payload:   plan,
		expiresAt: exp,
	}
	return nil
}

// Len reports how many plans are held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.plans)
}

func (s *MemoryStore) hasExpired(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	return ts.Before(s.now())
}

var _ mealplan.Store = (*MemoryStore)(nil)
