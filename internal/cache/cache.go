package cache

import (
	"context"
	"time"
)

// PrefixCache holds the location/financial-year part of a transaction number
// prefix. Both inputs are immutable once created, so entries never go stale.
type PrefixCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type NoopPrefixCache struct{}

func (NoopPrefixCache) Get(_ context.Context, _ string) (string, bool, error) {
	return "", false, nil
}

func (NoopPrefixCache) Set(_ context.Context, _ string, _ string, _ time.Duration) error {
	return nil
}
