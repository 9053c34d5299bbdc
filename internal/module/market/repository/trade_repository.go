package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm/clause"

	"github.com/unqnft/marketplace-proxy/internal/database"
	"github.com/unqnft/marketplace-proxy/internal/database/schema"
)

type TradeRepository interface {
	SaveTrades(ctx context.Context, trades []schema.Trade) error
	ListTrades(ctx context.Context, account string, collectionIDs []string, page, pageSize int) ([]schema.Trade, int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type tradeRepository struct {
	db     *database.Database
	logger zerolog.Logger
}

func NewTradeRepository(db *database.Database, logger zerolog.Logger) TradeRepository {
	return &tradeRepository{db: db, logger: logger}
}

// SaveTrades upserts by trade id; a trade already recorded is left untouched.
func (r *tradeRepository) SaveTrades(ctx context.Context, trades []schema.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "trade_id"}},
			DoNothing: true,
		}).
		CreateInBatches(trades, 500).Error
}

func (r *tradeRepository) ListTrades(ctx context.Context, account string, collectionIDs []string, page, pageSize int) ([]schema.Trade, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	query := r.db.DB.WithContext(ctx).Model(&schema.Trade{})
	if account != "" {
		query = query.Where("seller = ? OR buyer = ?", account, account)
	}
	if len(collectionIDs) > 0 {
		query = query.Where("collection_id IN ?", collectionIDs)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var trades []schema.Trade
	err := query.
		Order("trade_date DESC NULLS LAST").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&trades).Error
	if err != nil {
		return nil, 0, err
	}

	return trades, total, nil
}

func (r *tradeRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("trade_date < ?", cutoff).
		Delete(&schema.Trade{})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}
