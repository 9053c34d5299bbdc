package main

import (
	"time"

	"go.uber.org/fx"

	fxzerolog "github.com/efectn/fx-zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/unqnft/marketplace-proxy/internal/application"
	"github.com/unqnft/marketplace-proxy/internal/bootstrap"
	"github.com/unqnft/marketplace-proxy/internal/database"
	"github.com/unqnft/marketplace-proxy/internal/module/market"
	"github.com/unqnft/marketplace-proxy/internal/module/scheduler"
	"github.com/unqnft/marketplace-proxy/internal/module/shared"
	"github.com/unqnft/marketplace-proxy/internal/router"
)

func main() {
	fx.New(
		/* provide patterns */
		// basic
		shared.NewSharedModule,
		scheduler.NewSchedulerModule,
		// application
		fx.Provide(application.NewApplication),
		// database
		fx.Provide(database.NewDatabase),
		// router
		fx.Provide(router.NewRouter),
		/* provide modules */
		market.NewMarketModule,
		// start aplication
		fx.Invoke(bootstrap.Start),
		// define logger
		fx.WithLogger(fxzerolog.Init()),
		// invoke scheduler tasks
		fx.Invoke(func(s *scheduler.Scheduler) {
			go s.StartOfferSync()
			go s.StartTradeSync()
			go s.StartPresetRefresh()
			go s.StartRequestLogFlush()
			go s.StartCleanup()
		}),
	).Run()

	fx.StartTimeout(10 * time.Minute)
}
