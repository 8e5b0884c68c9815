package config

import (
	"context"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a Redis client from REDIS_ADDRESS without pinging it.
// The caller owns the handle and its lifecycle (constructed once in main,
// closed on shutdown); there is no package-level client. A nil return means
// Redis is disabled for this process and callers must degrade to local-only
// caching.
func NewRedisClient(ctx context.Context) *redis.Client {
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		log.Printf("REDIS_ADDRESS not set; running without distributed cache")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0, // use default DB
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Redis being down must not delay or fail startup; the tiered
		// cache treats every tier-2 error as a miss.
		log.Printf("redis not reachable at startup (addr=%s): %v; continuing degraded", redisAddr, err)
	} else {
		log.Printf("connected to redis (addr=%s)", redisAddr)
	}
	return rdb
}
