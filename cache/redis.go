package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the tier-2 store. Entries live under a namespace prefix so Clear
// can drop this service's keys without flushing the whole database. A nil
// client is a valid degraded mode: every operation becomes a miss/no-op.
type Redis struct {
	rdb        *redis.Client
	prefix     string
	defaultTTL time.Duration
}

func NewRedis(rdb *redis.Client, prefix string, defaultTTL time.Duration) *Redis {
	if prefix == "" {
		prefix = "analytics:"
	}
	return &Redis{rdb: rdb, prefix: prefix, defaultTTL: defaultTTL}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if r.rdb == nil {
		return nil, false, nil
	}
	val, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r.rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	return r.rdb.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	if r.rdb == nil {
		return false, nil
	}
	n, err := r.rdb.Exists(ctx, r.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Del(ctx, r.prefix+key).Err()
}

func (r *Redis) Clear(ctx context.Context) error {
	if r.rdb == nil {
		return nil
	}
	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, r.prefix+"*", 500).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Ping reports tier-2 reachability for the healthz endpoint.
func (r *Redis) Ping(ctx context.Context) error {
	if r.rdb == nil {
		return errors.New("redis disabled")
	}
	return r.rdb.Ping(ctx).Err()
}
