package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/unqnft/marketplace-proxy/internal/database/schema"
	marketclient "github.com/unqnft/marketplace-proxy/internal/module/market/client"
	"github.com/unqnft/marketplace-proxy/internal/module/market/repository"
	"github.com/unqnft/marketplace-proxy/internal/module/market/service"
	"github.com/unqnft/marketplace-proxy/internal/module/shared"
)

const tradeRetention = 90 * 24 * time.Hour

// Scheduler runs the background sync loops. Every loop is guarded by a redis
// lock so only one instance does the work.
type Scheduler struct {
	AggregatorService    service.AggregatorService
	TradeRepository      repository.TradeRepository
	RequestLogRepository repository.RequestLogRepository
	amqp                 *shared.Amqp
	redisClient          *shared.RedisClient
	notifier             *shared.SlackNotifier
	Logger               zerolog.Logger
}

func NewScheduler(aggregatorService service.AggregatorService, tradeRepository repository.TradeRepository, requestLogRepository repository.RequestLogRepository, amqp *shared.Amqp, redisClient *shared.RedisClient, notifier *shared.SlackNotifier, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		AggregatorService:    aggregatorService,
		TradeRepository:      tradeRepository,
		RequestLogRepository: requestLogRepository,
		amqp:                 amqp,
		redisClient:          redisClient,
		notifier:             notifier,
		Logger:               logger,
	}
}

// StartOfferSync keeps the offer mapping warm by walking the pages from the
// top every interval.
func (s *Scheduler) StartOfferSync() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		redisLockKey := "offer_sync_lock"
		if s.redisClient.AcquireLock(redisLockKey, 1*time.Minute) {
			if err := s.syncOffers(); err != nil {
				s.Logger.Error().Err(err).Msg("offer sync failed")
				s.notifier.HandleErrorWithThrottling("offer_sync", err.Error())
			} else {
				s.Logger.Info().Msg("offer sync finished")
			}
			s.redisClient.ReleaseLock(redisLockKey)
		}
	}
}

func (s *Scheduler) syncOffers() error {
	ctx := context.Background()
	pageSize := 100

	for page := 1; ; page++ {
		offers, err := s.AggregatorService.GetOffers(ctx, page, pageSize, service.OfferFilters{})
		if err != nil {
			return err
		}
		// the merge stops growing once the walk passes the last page
		if len(offers) < page*pageSize {
			return nil
		}
	}
}

// StartTradeSync archives newly observed trades and fans them out on amqp.
func (s *Scheduler) StartTradeSync() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		redisLockKey := "trade_sync_lock"
		if s.redisClient.AcquireLock(redisLockKey, 2*time.Minute) {
			if err := s.syncTrades(); err != nil {
				s.Logger.Error().Err(err).Msg("trade sync failed")
				s.notifier.HandleErrorWithThrottling("trade_sync", err.Error())
			} else {
				s.Logger.Info().Msg("trade sync finished")
			}
			s.redisClient.ReleaseLock(redisLockKey)
		}
	}
}

func (s *Scheduler) syncTrades() error {
	ctx := context.Background()

	trades, err := s.AggregatorService.GetTrades(ctx, service.TradeParams{Page: 1, PageSize: 100})
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		return nil
	}

	records := make([]schema.Trade, 0, len(trades))
	for _, trade := range trades {
		records = append(records, toTradeRecord(trade))
	}

	if err := s.TradeRepository.SaveTrades(ctx, records); err != nil {
		return err
	}

	for _, record := range records {
		if err := s.amqp.Publish("market.trade.observed", record); err != nil {
			s.Logger.Warn().Err(err).Msg("failed to publish trade event")
			break
		}
	}

	return nil
}

func toTradeRecord(trade marketclient.Trade) schema.Trade {
	tradeDate := trade.TradeDate.Time
	record := schema.Trade{
		TradeID:      fmt.Sprintf("%d-%d-%d", trade.CollectionID, trade.TokenID, tradeDate.Unix()),
		CollectionID: strconv.Itoa(trade.CollectionID),
		TokenID:      strconv.Itoa(trade.TokenID),
		Price:        trade.Price,
		QuoteID:      trade.QuoteID,
		Seller:       trade.Seller,
		TradeDate:    &tradeDate,
	}
	if trade.Buyer != nil {
		record.Buyer = *trade.Buyer
	}
	return record
}

// StartPresetRefresh re-runs the preset merge so newly allow-listed
// collections appear without a request hitting the endpoint first.
func (s *Scheduler) StartPresetRefresh() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		redisLockKey := "preset_refresh_lock"
		if s.redisClient.AcquireLock(redisLockKey, 1*time.Minute) {
			if _, err := s.AggregatorService.PresetCollections(context.Background()); err != nil {
				s.Logger.Error().Err(err).Msg("preset refresh failed")
			} else {
				s.Logger.Info().Msg("preset refresh finished")
			}
			s.redisClient.ReleaseLock(redisLockKey)
		}
	}
}

// StartRequestLogFlush drains the buffered request logs into postgres.
func (s *Scheduler) StartRequestLogFlush() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		if err := s.RequestLogRepository.ProcessQueue(); err != nil {
			s.Logger.Error().Err(err).Msg("request log flush failed")
		}
	}
}

// StartCleanup prunes aged trades and request logs.
func (s *Scheduler) StartCleanup() {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		redisLockKey := "cleanup_lock"
		if s.redisClient.AcquireLock(redisLockKey, 5*time.Minute) {
			ctx := context.Background()

			if deleted, err := s.TradeRepository.DeleteOlderThan(ctx, time.Now().Add(-tradeRetention)); err != nil {
				s.Logger.Error().Err(err).Msg("trade cleanup failed")
			} else if deleted > 0 {
				s.Logger.Info().Int64("deleted", deleted).Msg("pruned aged trades")
			}

			if deleted, err := s.RequestLogRepository.DeleteOlderThan(ctx, time.Now().Add(-30*24*time.Hour)); err != nil {
				s.Logger.Error().Err(err).Msg("request log cleanup failed")
			} else if deleted > 0 {
				s.Logger.Info().Int64("deleted", deleted).Msg("pruned aged request logs")
			}

			s.redisClient.ReleaseLock(redisLockKey)
		}
	}
}
