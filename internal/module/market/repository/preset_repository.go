package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/knadh/koanf/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/unqnft/marketplace-proxy/internal/module/market/chain"
	"github.com/unqnft/marketplace-proxy/internal/module/shared"
)

const presetCasRetries = 3

// PresetRepository persists the collection preset list under a fixed key.
// Append is a compare-and-swap merge so two concurrent writers cannot lose
// each other's additions.
type PresetRepository interface {
	Load(ctx context.Context) ([]chain.Collection, error)
	Append(ctx context.Context, additions []chain.Collection) ([]chain.Collection, error)
	Clear(ctx context.Context) error
}

type presetRepository struct {
	redisClient *shared.RedisClient
	key         string
	logger      zerolog.Logger
}

func NewPresetRepository(cfg *koanf.Koanf, redisClient *shared.RedisClient, logger zerolog.Logger) PresetRepository {
	key := cfg.String("market.preset-key")
	if key == "" {
		key = "tokenCollections"
	}

	return &presetRepository{
		redisClient: redisClient,
		key:         key,
		logger:      logger,
	}
}

func (r *presetRepository) Load(ctx context.Context) ([]chain.Collection, error) {
	data, err := r.redisClient.Client.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return []chain.Collection{}, nil
	}
	if err != nil {
		return nil, err
	}

	var collections []chain.Collection
	if err := json.Unmarshal([]byte(data), &collections); err != nil {
		return nil, fmt.Errorf("corrupt preset list: %v", err)
	}

	return collections, nil
}

func (r *presetRepository) Append(ctx context.Context, additions []chain.Collection) ([]chain.Collection, error) {
	if len(additions) == 0 {
		return r.Load(ctx)
	}

	var merged []chain.Collection

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, r.key).Result()
		if err != nil && err != redis.Nil {
			return err
		}

		var existing []chain.Collection
		if current != "" {
			if err := json.Unmarshal([]byte(current), &existing); err != nil {
				// unreadable list is replaced rather than kept
				r.logger.Warn().Err(err).Msg("discarding corrupt preset list")
				existing = nil
			}
		}

		seen := make(map[string]bool, len(existing))
		merged = make([]chain.Collection, 0, len(existing)+len(additions))
		for _, collection := range existing {
			if !seen[collection.ID] {
				seen[collection.ID] = true
				merged = append(merged, collection)
			}
		}
		for _, collection := range additions {
			if !seen[collection.ID] {
				seen[collection.ID] = true
				merged = append(merged, collection)
			}
		}

		data, err := json.Marshal(merged)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, data, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < presetCasRetries; attempt++ {
		err := r.redisClient.Client.Watch(ctx, txf, r.key)
		if err == nil {
			return merged, nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("preset append lost the race %d times", presetCasRetries)
}

func (r *presetRepository) Clear(ctx context.Context) error {
	return r.redisClient.Client.Del(ctx, r.key).Err()
}
