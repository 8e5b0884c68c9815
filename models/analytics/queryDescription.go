package analytics

import (
	"github.com/bpopendata/budget_backend/cache"
)

// QueryDescription is the compiled, pure-value form of one analytics call.
// Never persisted; its canonical serialization is the cache key, so two
// logically identical requests always share a key regardless of how the
// caller ordered its fields, and any extra filter field changes the key.
type QueryDescription struct {
	Op      string           `json:"op"`
	Request AggregateRequest `json:"request"`
}

func (q QueryDescription) CacheKey() (string, error) {
	return cache.CanonicalKey(q)
}
