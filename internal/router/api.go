package router

import (
	"github.com/unqnft/marketplace-proxy/internal/module/market"
)

type Router struct {
	MarketRouter *market.MarketRouter
}

func NewRouter(
	marketRouter *market.MarketRouter,
) *Router {
	return &Router{
		MarketRouter: marketRouter,
	}
}

// Register routes
func (r *Router) Register() {
	// Register routes of modules
	r.MarketRouter.RegisterMarketRoutes()
	r.MarketRouter.RegisterCollectionRoutes()
}
