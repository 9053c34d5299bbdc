package bootstrap

import (
	"context"
	"flag"
	"os"
	"runtime"

	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/unqnft/marketplace-proxy/internal/application"
	"github.com/unqnft/marketplace-proxy/internal/database"
	"github.com/unqnft/marketplace-proxy/internal/module/market/service"
	"github.com/unqnft/marketplace-proxy/internal/module/shared"
	"github.com/unqnft/marketplace-proxy/internal/router"
)

// function to start webserver
func Start(
	lifecycle fx.Lifecycle,
	cfg *koanf.Koanf,
	log zerolog.Logger,
	app *application.Application,
	router *router.Router,
	database *database.Database,
	amqp *shared.Amqp,
	redis *shared.RedisClient,
	aggregator service.AggregatorService,
) {
	lifecycle.Append(
		fx.Hook{
			OnStart: func(ctx context.Context) error {
				router.Register()

				log.Info().Msg(app.AppName + " is running at the moment!")

				if !cfg.Bool("app.production") {
					procs := runtime.GOMAXPROCS(0)

					log.Debug().Msgf("Hostname: %s", app.Hostname)
					log.Debug().Msgf("Port: %s", app.Port)
					log.Debug().Msgf("Processes: %d", procs)
					log.Debug().Msgf("PID: %d", os.Getpid())
				}

				go func() {
					if err := app.Run(); err != nil {
						log.Error().Err(err).Msg("An unknown error occurred when to run server!")
					}
				}()

				database.ConnectDatabase()

				migrate := flag.Bool("migrate", false, "migrate the database")
				flag.Parse()

				// read flag -migrate to migrate the database
				if *migrate {
					database.MigrateModels()
				}

				redis.Connect()
				log.Info().Msgf("2- Connected the Redis succesfully!")

				amqp.Connect()
				log.Info().Msgf("3- Connected the Amqp succesfully!")

				return nil
			},
			OnStop: func(ctx context.Context) error {
				log.Info().Msg("Running cleanup tasks...")

				log.Info().Msg("1- Stop the aggregation service")
				aggregator.Close()

				log.Info().Msg("2- Shutdown the Database")
				database.ShutdownDatabase()

				log.Info().Msg("3- Shutdown the Redis")
				if redis != nil {
					redis.Close()
				}

				log.Info().Msg("4- Shutdown the Amqp")
				if amqp != nil {
					amqp.Close()
				}

				log.Info().Msgf("%s was successful shutdown.", app.AppName)

				return nil
			},
		},
	)
}
