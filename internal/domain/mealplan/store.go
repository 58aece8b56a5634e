package mealplan

import (
	"context"
	"time"
)

// Store caches generated plans. A zero ttl means no expiry.
type Store interface {
	Get(ctx context.Context, key string) (CachedPlan, bool, error)
	Save(ctx context.Context, plan CachedPlan, ttl time.Duration) error
}

// TokenCounter estimates prompt/completion sizes when the API omits usage.
type TokenCounter interface {
	Count(model, text string) (int, error)
}
