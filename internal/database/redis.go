package database

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/finedge/corebank/internal/config"
)

// InitRedis connects the session and settlement cache. Redis is optional;
// callers treat a nil client as "cache disabled".
func InitRedis(cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisHost + ":" + cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return rdb, nil
}
