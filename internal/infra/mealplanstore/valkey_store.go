package mealplanstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/nutriai/internal/domain/mealplan"
)

// ValkeyStore caches generated plans in a Valkey-compatible database.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "mealplan"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

func (s *ValkeyStore) Get(ctx context.Context, key string) (mealplan.CachedPlan, bool, error) {
	if key == "" {
		return mealplan.CachedPlan{}, false, nil
	}
	cmd := s.client.B().Get().Key(s.planKey(key)).Build()
	payload, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return mealplan.CachedPlan{}, false, nil
		}
		return mealplan.CachedPlan{}, false, fmt.Errorf("get cached plan: %w", err)
	}
	var plan mealplan.CachedPlan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return mealplan.CachedPlan{}, false, fmt.Errorf("decode cached plan: %w", err)
	}
	return plan, true, nil
}

func (s *ValkeyStore) Save(ctx context.Context, plan mealplan.CachedPlan, ttl time.Duration) error {
	if plan.Key == "" {
		return nil
	}
	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode cached plan: %w", err)
	}
	return s.setString(ctx, s.planKey(plan.Key), string(payload), ttl)
}

func (s *ValkeyStore) setString(ctx context.Context, key, value string, ttl time.Duration) error {
	builder := s.client.B().Set().Key(key).Value(value)
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

func (s *ValkeyStore) planKey(key string) string {
	return fmt.Sprintf("%s:plan:%s", s.prefix, key)
}

var _ mealplan.Store = (*ValkeyStore)(nil)
