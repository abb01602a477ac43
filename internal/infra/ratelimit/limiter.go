package ratelimit

import (
	"time"

	"keyward/internal/config"
	"keyward/internal/domain"

	"github.com/redis/go-redis/v9"
)

// FromConfig picks redis when REDIS_ADDR is set and memory otherwise. The
// returned close func releases the redis connection pool.
func FromConfig(cfg config.Config) (domain.RateLimiter, func() error, error) {
	if cfg.RedisAddr == "" {
		return NewMemory(cfg.RateLimitMaxKeys, time.Now), func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	limiter, err := NewRedis(client, time.Now)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return limiter, limiter.Close, nil
}
