package service

import (
	"context"
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/unqnft/marketplace-proxy/internal/module/shared"
)

const defaultAnonymousRate = 5

// RateLimiterService enforces a per-key requests-per-second budget backed by
// a redis counter. Keyless callers share the anonymous budget.
type RateLimiterService struct {
	redisClient *shared.RedisClient
	keyedRate   int
	anonRate    int
}

func NewRateLimiterService(cfg *koanf.Koanf, redisClient *shared.RedisClient) *RateLimiterService {
	keyedRate := cfg.Int("app.rate-limit")
	if keyedRate == 0 {
		keyedRate = 50
	}
	anonRate := cfg.Int("app.anonymous-rate-limit")
	if anonRate == 0 {
		anonRate = defaultAnonymousRate
	}

	return &RateLimiterService{
		redisClient: redisClient,
		keyedRate:   keyedRate,
		anonRate:    anonRate,
	}
}

func (s *RateLimiterService) Allow(ctx context.Context, token string) (bool, error) {
	limit := s.keyedRate
	if token == "" {
		limit = s.anonRate
	}

	key := "rate_limit:" + token
	interval := time.Second

	allowed, err := s.redisClient.Client.Eval(ctx, `
		local key = KEYS[1]
		local limit = tonumber(ARGV[1])
		local interval = tonumber(ARGV[2])
		local current = redis.call("GET", key)
		if current and tonumber(current) >= limit then
			return 0
		else
			redis.call("INCR", key)
			redis.call("EXPIRE", key, interval)
			return 1
		end
	`, []string{key}, limit, int64(interval.Seconds())).Int()

	if err != nil {
		return false, err
	}

	return allowed == 1, nil
}
