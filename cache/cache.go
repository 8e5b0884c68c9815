// Package cache provides the two-tier result cache used by the analytics
// engine: a bounded in-process LRU (tier 1) in front of a shared Redis
// backend (tier 2). Values are opaque serialized bytes; callers own the
// encoding.
package cache

import (
	"context"
	"time"
)

// Store is the contract shared by every tier and by the tiered composition.
// A ttl of zero on Set means "use the store's default TTL".
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Has(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
