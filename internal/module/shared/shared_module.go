package shared

import (
	"go.uber.org/fx"

	"github.com/unqnft/marketplace-proxy/utils/config"
)

var NewSharedModule = fx.Options(
	fx.Provide(NewKoanfInstance),
	fx.Provide(NewLogger),
	fx.Provide(NewRedisClient),
	fx.Provide(NewRabbitMQ),
	fx.Provide(NewSlackNotifier),
	fx.Provide(config.NewMarket),
	fx.Provide(config.NewChain),
	fx.Provide(config.NewBridge),
	fx.Provide(config.NewOpenSea),
)
