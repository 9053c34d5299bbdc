package controller

import (
	"github.com/rs/zerolog"

	"github.com/unqnft/marketplace-proxy/internal/module/market/repository"
	"github.com/unqnft/marketplace-proxy/internal/module/market/service"
)

type Controller struct {
	Market      MarketController
	Collections CollectionController
}

func NewController(
	aggregatorService service.AggregatorService,
	collectionService service.CollectionService,
	tradeRepo repository.TradeRepository,
	requestLogRepo repository.RequestLogRepository,
	logger zerolog.Logger) *Controller {
	return &Controller{
		Market:      NewMarketController(aggregatorService, tradeRepo, requestLogRepo, logger),
		Collections: NewCollectionController(collectionService, logger),
	}
}
