package main

import (
	"context"

	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/api"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/controller"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/migrations"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/service"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/storage/postgres"
	redisstorage "github.com/dunglechi/vnpt-talent-hub-sub001/internal/storage/redis"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/util"

	_ "github.com/lib/pq"
)

func main() {
	ctx := context.Background()
	logger := util.NewZapLogger()

	db, dbCleanup, err := util.NewDBConnection(logger)
	if err != nil {
		logger.Fatalf("database connection: %v", err)
	}
	if err := migrations.RunMigrations(db, logger); err != nil {
		logger.Fatalf("migrations: %v", err)
	}

	redisClient, redisCleanup, err := util.NewRedisClient(logger, util.NewRedisConfig())
	if err != nil {
		logger.Fatalf("redis connection: %v", err)
	}

	cleanupFuncs := []func(){dbCleanup, redisCleanup}

	store := postgres.NewStorage(db)
	tokenConfig := util.NewTokenConfig()
	serverConfig := util.NewServerConfig()

	tokenService := service.NewTokenService(tokenConfig)
	auditService := service.NewAuditService(store, logger)
	webhook := service.NewSecurityWebhook(logger, util.GetSecurityWebhookURL())
	authService := service.NewAuthService(tokenService, store, auditService, webhook, tokenConfig, logger)
	verificationService := service.NewVerificationService(store, auditService, util.NewVerificationConfig(), logger)

	rateLimiter := service.NewRateLimiter(
		redisstorage.NewRateLimitStore(redisClient),
		util.NewRateLimiterConfig(),
		logger,
	)

	ctrl := controller.NewController(logger, authService, verificationService, serverConfig)

	apiServer := api.NewAPI(ctrl, authService, rateLimiter, serverConfig, logger, cleanupFuncs)
	apiServer.Run(ctx)
}
