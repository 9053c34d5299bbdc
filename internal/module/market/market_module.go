package market

import (
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/unqnft/marketplace-proxy/internal/application"
	"github.com/unqnft/marketplace-proxy/internal/module/market/bridge"
	"github.com/unqnft/marketplace-proxy/internal/module/market/chain"
	"github.com/unqnft/marketplace-proxy/internal/module/market/client"
	"github.com/unqnft/marketplace-proxy/internal/module/market/controller"
	"github.com/unqnft/marketplace-proxy/internal/module/market/middleware"
	"github.com/unqnft/marketplace-proxy/internal/module/market/opensea"
	"github.com/unqnft/marketplace-proxy/internal/module/market/repository"
	"github.com/unqnft/marketplace-proxy/internal/module/market/service"
)

// struct of MarketRouter
type MarketRouter struct {
	App                *application.Application
	Controller         *controller.Controller
	RateLimiterService *service.RateLimiterService
	Logger             zerolog.Logger
}

// register bulky of market module
var NewMarketModule = fx.Options(
	fx.Provide(repository.NewPresetRepository),
	fx.Provide(repository.NewTradeRepository),
	fx.Provide(repository.NewMintRepository),
	fx.Provide(repository.NewRequestLogRepository),

	fx.Provide(client.NewClient),
	fx.Provide(chain.NewAdapter),
	fx.Provide(func(adapter *chain.Adapter) chain.Reader { return adapter }),
	fx.Provide(func(adapter *chain.Adapter) chain.Writer { return adapter }),
	fx.Provide(bridge.NewClient),
	fx.Provide(opensea.NewClient),

	fx.Provide(service.NewAggregatorService),
	fx.Provide(service.NewCollectionService),
	fx.Provide(service.NewRateLimiterService),

	fx.Provide(controller.NewController),

	fx.Provide(NewMarketRouter),
)

// init MarketRouter
func NewMarketRouter(app *application.Application, controller *controller.Controller, rateLimiterService *service.RateLimiterService, logger zerolog.Logger) *MarketRouter {
	return &MarketRouter{
		App:                app,
		Controller:         controller,
		RateLimiterService: rateLimiterService,
		Logger:             logger,
	}
}

// register routes of market module
func (_i *MarketRouter) RegisterMarketRoutes() {
	marketController := _i.Controller.Market

	rateLimitMiddleware := middleware.RateLimitMiddleware(_i.RateLimiterService, _i.Logger)

	_i.App.Router.GET("/assets", rateLimitMiddleware(marketController.GetAssets))
	_i.App.Router.GET("/offers", rateLimitMiddleware(marketController.GetOffers))
	_i.App.Router.GET("/holds/{account}", rateLimitMiddleware(marketController.GetHolds))
	_i.App.Router.GET("/trades", rateLimitMiddleware(marketController.GetTrades))
	_i.App.Router.GET("/trades/archive", rateLimitMiddleware(marketController.GetTradeArchive))
	_i.App.Router.GET("/trades/{account}", rateLimitMiddleware(marketController.GetTrades))
	_i.App.Router.GET("/collections/presets", rateLimitMiddleware(marketController.GetPresetCollections))
	_i.App.Router.POST("/mint", rateLimitMiddleware(marketController.Mint))
	_i.App.Router.GET("/orders", rateLimitMiddleware(marketController.GetOrder))
	_i.App.Router.POST("/orders/fulfill", rateLimitMiddleware(marketController.FulfillOrder))

	_i.App.Router.GET("/k8s/healthz", marketController.CheckHealthz)
}

// register collection management routes
func (_i *MarketRouter) RegisterCollectionRoutes() {
	collectionController := _i.Controller.Collections

	rateLimitMiddleware := middleware.RateLimitMiddleware(_i.RateLimiterService, _i.Logger)

	_i.App.Router.GET("/collections/count", rateLimitMiddleware(collectionController.GetCount))
	_i.App.Router.GET("/collections/{id}/tokens/count", rateLimitMiddleware(collectionController.GetTokensCount))
	_i.App.Router.GET("/collections/{id}/admins", rateLimitMiddleware(collectionController.GetAdmins))
	_i.App.Router.GET("/collections/{id}/tokens/{owner}", rateLimitMiddleware(collectionController.GetOwnerTokens))

	_i.App.Router.POST("/collections", rateLimitMiddleware(collectionController.Create))
	_i.App.Router.POST("/collections/{id}/sponsor", rateLimitMiddleware(collectionController.SetSponsor))
	_i.App.Router.POST("/collections/{id}/sponsor/remove", rateLimitMiddleware(collectionController.RemoveSponsor))
	_i.App.Router.POST("/collections/{id}/sponsor/confirm", rateLimitMiddleware(collectionController.ConfirmSponsorship))
	_i.App.Router.POST("/collections/{id}/schema/version", rateLimitMiddleware(collectionController.SetSchemaVersion))
	_i.App.Router.POST("/collections/{id}/schema/offchain", rateLimitMiddleware(collectionController.SetOffChainSchema))
	_i.App.Router.POST("/collections/{id}/schema/const", rateLimitMiddleware(collectionController.SaveConstSchema))
	_i.App.Router.POST("/collections/{id}/schema/variable", rateLimitMiddleware(collectionController.SaveVariableSchema))
	_i.App.Router.POST("/collections/{id}/admins", rateLimitMiddleware(collectionController.AddAdmin))
	_i.App.Router.POST("/collections/{id}/admins/remove", rateLimitMiddleware(collectionController.RemoveAdmin))
}
