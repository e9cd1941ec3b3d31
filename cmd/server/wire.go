// File: cmd/server/wire.go
//go:build wireinject
// +build wireinject

package main

import (
	"log"

	"marketplace_backend/internal/app"
	"marketplace_backend/internal/config"
	"marketplace_backend/internal/firebase"
	"marketplace_backend/internal/flag"
	"marketplace_backend/internal/host"
	"marketplace_backend/internal/jobs"
	"marketplace_backend/internal/listing"
	"marketplace_backend/internal/location"
	"marketplace_backend/internal/notification"
	"marketplace_backend/internal/platform/database"
	platformElasticsearch "marketplace_backend/internal/platform/elasticsearch"
	"marketplace_backend/internal/platform/logger"
	platformRedis "marketplace_backend/internal/platform/redis"
	"marketplace_backend/internal/projection"
	"marketplace_backend/internal/publication"
	"marketplace_backend/internal/slot"
	"marketplace_backend/internal/subscription"

	"github.com/google/wire"
	"go.uber.org/zap"
	"gorm.io/gorm"

	goredis "github.com/redis/go-redis/v9"
)

// initializeServer is the main Wire injector.
func initializeServer(cfg *config.Config) (*app.Server, func(), error) {
	wire.Build(
		// Platform Layer
		logger.New,
		database.NewGORM,
		platformRedis.NewClient,
		platformElasticsearch.NewClient,
		firebase.NewService,
		provideCleanup,

		// Repositories
		host.NewGORMRepository,
		listing.NewGORMRepository,
		slot.NewGORMRepository,
		location.NewGORMRepository,
		subscription.NewGORMRepository,

		// Domain services
		location.NewCounterMaintainer,
		location.NewResolver,
		projection.NewMirror,
		projection.NewWriter,
		subscription.NewService,
		wire.Bind(new(subscription.Service), new(*subscription.ServiceImplementation)),
		flag.NewRedisStore,
		wire.Bind(new(flag.Store), new(*flag.RedisStore)),
		notification.NewService,
		wire.Bind(new(notification.Service), new(*notification.ServiceImplementation)),

		// Publication engine
		publication.NewGormTxRunner,
		wire.Bind(new(publication.TxRunner), new(*publication.GormTxRunner)),
		wire.Bind(new(publication.ProjectionWriter), new(*projection.Writer)),
		wire.Bind(new(publication.LocationResolver), new(*location.Resolver)),
		wire.Bind(new(publication.CounterMaintainer), new(*location.CounterMaintainer)),
		publication.NewService,
		wire.Bind(new(publication.Service), new(*publication.ServiceImplementation)),
		publication.NewHandler,

		// Jobs
		jobs.NewSlotSweepJob,
		jobs.NewHandler,

		// Application Layer
		app.NewServer,
	)
	return nil, nil, nil
}

func provideCleanup(logger *zap.Logger, db *gorm.DB, redisClient *goredis.Client) func() {
	return func() {
		logger.Info("Executing cleanup tasks...")
		database.CloseGORMDB(db)
		platformRedis.Close(redisClient, logger)
		if err := logger.Sync(); err != nil {
			log.Printf("ERROR: Failed to sync logger during cleanup: %v", err)
		}
		log.Println("Cleanup finished.")
	}
}
