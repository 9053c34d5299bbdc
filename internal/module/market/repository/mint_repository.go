package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/unqnft/marketplace-proxy/internal/database"
	"github.com/unqnft/marketplace-proxy/internal/database/schema"
)

// Mint request statuses.
const (
	MintStatusPending   = "pending"
	MintStatusSubmitted = "submitted"
	MintStatusConfirmed = "confirmed"
	MintStatusFailed    = "failed"
)

// MintRepository is the idempotency ledger for bridge mint requests.
type MintRepository interface {
	GetByKey(ctx context.Context, key string) (*schema.MintRequest, error)
	Create(ctx context.Context, request *schema.MintRequest) error
	MarkSubmitted(ctx context.Context, key, txHash string) error
	MarkConfirmed(ctx context.Context, key, blockHash string) error
	MarkFailed(ctx context.Context, key string, reason string) error
}

type mintRepository struct {
	db     *database.Database
	logger zerolog.Logger
}

func NewMintRepository(db *database.Database, logger zerolog.Logger) MintRepository {
	return &mintRepository{db: db, logger: logger}
}

func (r *mintRepository) GetByKey(ctx context.Context, key string) (*schema.MintRequest, error) {
	var request schema.MintRequest
	err := r.db.DB.WithContext(ctx).Where("mint_key = ?", key).First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &request, nil
}

func (r *mintRepository) Create(ctx context.Context, request *schema.MintRequest) error {
	if request.Status == "" {
		request.Status = MintStatusPending
	}
	return r.db.DB.WithContext(ctx).Create(request).Error
}

func (r *mintRepository) MarkSubmitted(ctx context.Context, key, txHash string) error {
	return r.update(ctx, key, map[string]interface{}{
		"status":  MintStatusSubmitted,
		"tx_hash": txHash,
	})
}

func (r *mintRepository) MarkConfirmed(ctx context.Context, key, blockHash string) error {
	now := time.Now()
	return r.update(ctx, key, map[string]interface{}{
		"status":       MintStatusConfirmed,
		"block_hash":   blockHash,
		"confirmed_at": &now,
	})
}

func (r *mintRepository) MarkFailed(ctx context.Context, key string, reason string) error {
	return r.update(ctx, key, map[string]interface{}{
		"status": MintStatusFailed,
		"error":  reason,
	})
}

func (r *mintRepository) update(ctx context.Context, key string, fields map[string]interface{}) error {
	return r.db.DB.WithContext(ctx).
		Model(&schema.MintRequest{}).
		Where("mint_key = ?", key).
		Updates(fields).Error
}
