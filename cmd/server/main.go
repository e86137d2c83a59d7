package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"alcyxob/nutrition-onboarding/internal/api"
	"alcyxob/nutrition-onboarding/internal/config"
	"alcyxob/nutrition-onboarding/internal/logging"
	"alcyxob/nutrition-onboarding/internal/metrics"
	"alcyxob/nutrition-onboarding/internal/repository"
	"alcyxob/nutrition-onboarding/internal/repository/memory"
	"alcyxob/nutrition-onboarding/internal/repository/mongo"
	"alcyxob/nutrition-onboarding/internal/service"
	"alcyxob/nutrition-onboarding/internal/storage"
)

// @title Nutrition Onboarding API
// @version 1.0
// @description Guided onboarding that collects a nutrition profile and derives daily targets.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		// The configured logger does not exist yet.
		bootstrap := logging.New("info", "console")
		bootstrap.Fatal().Err(err).Msg("could not load config")
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	logger.Info().Str("database", cfg.Database.Driver).Str("storage", cfg.Storage.Driver).Bool("offline", cfg.Onboarding.OfflineMode).Msg("starting nutrition onboarding server")

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStartup()

	// --- Backend user records ---
	var userRepo repository.UserRepository
	switch cfg.Database.Driver {
	case "mongo":
		dbClient, err := mongo.ConnectDB(startupCtx, cfg.Database.URI)
		if err != nil {
			logger.Fatal().Err(err).Msg("could not connect to MongoDB")
		}
		defer func() {
			logger.Info().Msg("disconnecting MongoDB")
			if err := mongo.DisconnectDB(dbClient); err != nil {
				logger.Error().Err(err).Msg("failed to disconnect MongoDB")
			}
		}()
		appDB := dbClient.Database(cfg.Database.Name)
		ensureIndexes(logging.Component(logger, "mongo"), appDB)
		userRepo = mongo.NewMongoUserRepository(appDB)
	default:
		logger.Warn().Msg("using in-memory user repository; records are lost on restart")
		userRepo = memory.NewUserRepository()
	}

	// --- Local onboarding progress ---
	var kv storage.KeyValueStore
	switch cfg.Storage.Driver {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(startupCtx).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.Storage.Redis.Addr).Msg("could not connect to Redis")
		}
		defer rdb.Close()
		kv = storage.NewRedisStore(rdb, cfg.Storage.Redis.TTL)
	case "s3":
		kv, err = storage.NewS3Store(startupCtx, cfg.Storage.S3, logging.Component(logger, "s3"))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize S3 storage")
		}
	default:
		kv = storage.NewMemoryStore()
	}

	// --- Services ---
	coordinator := service.NewCompletionCoordinator(userRepo, kv, service.CompletionOptions{
		Timeout:     cfg.Onboarding.SyncTimeout,
		OfflineMode: cfg.Onboarding.OfflineMode,
		Breaker: service.BreakerSettings{
			MaxRequests:         cfg.Breaker.MaxRequests,
			Interval:            cfg.Breaker.Interval,
			Timeout:             cfg.Breaker.Timeout,
			ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
		},
	}, logger, m)
	onboardingService := service.NewOnboardingService(kv, coordinator, service.SessionOptions{
		IdleTTL: cfg.Onboarding.SessionIdleTTL,
		// Redis and S3 may be shared with other instances.
		Shared: cfg.Storage.Driver != "memory",
	}, logger, m)

	// --- HTTP ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestid.New())
	api.SetupRoutes(router, cfg.JWT.Secret, onboardingService, m, cfg.RateLimit, logging.Component(logger, "http"))

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Onboarding.SyncTimeout*3 + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("ListenAndServe error")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	logger.Info().Msg("server exiting")
}

func ensureIndexes(log zerolog.Logger, db *mongodriver.Database) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := mongo.EnsureUserIndexes(ctx, db.Collection(mongo.UserCollectionName)); err != nil {
		log.Error().Err(err).Msg("failed to ensure user indexes")
		return
	}
	log.Info().Msg("user indexes ensured")
}
