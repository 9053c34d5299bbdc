package shared

import (
	"context"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RedisClient struct {
	Client           *redis.Client
	url              string
	options          *redis.Options
	retryCount       int
	keepliveInterval time.Duration
	logger           zerolog.Logger
}

func NewRedisClient(cfg *koanf.Koanf, logger zerolog.Logger) *RedisClient {
	url := cfg.String("redis.url")
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Panic().Err(err)
	}

	return &RedisClient{
		Client:           nil,
		options:          opts,
		logger:           logger,
		url:              url,
		retryCount:       cfg.Int("redis.retry-count"),
		keepliveInterval: cfg.Duration("redis.keeplive-interval"),
	}
}

func (r *RedisClient) keeplive() {
	for {
		for i := 1; i <= r.retryCount; i++ {
			_, err := r.Client.Ping(context.Background()).Result()
			if err == nil || err == redis.Nil {
				break
			}

			if i == r.retryCount {
				r.Close()
				r.logger.Panic().Msgf("Failed to connect to Redis: %v after %d retries", err, i)
				return
			}

			r.logger.Warn().Msgf("Failed to connect to Redis: %v. Retrying %d...", err, i)
			r.Client = redis.NewClient(r.options)
		}

		time.Sleep(r.keepliveInterval)
	}
}

func (r *RedisClient) Connect() {
	r.Client = redis.NewClient(r.options)
	go r.keeplive()
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}

// AcquireLock takes a best-effort distributed lock; callers skip the guarded
// work when it is already held by another instance.
func (r *RedisClient) AcquireLock(lockKey string, ttl time.Duration) bool {
	ctx := context.Background()
	ok, err := r.Client.SetNX(ctx, lockKey, "locked", ttl).Result()
	if err != nil {
		r.logger.Debug().Msg("failed to acquire lock key " + lockKey)
		return false
	}
	if !ok {
		r.logger.Debug().Msg("lock already held by another instance key: " + lockKey)
		return false
	}
	return true
}

func (r *RedisClient) ReleaseLock(lockKey string) {
	ctx := context.Background()
	r.Client.Del(ctx, lockKey)
}
