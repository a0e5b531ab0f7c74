package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/alter5/project-zurich/config"
	appmodel "github.com/alter5/project-zurich/internal/app/model"
	appserver "github.com/alter5/project-zurich/internal/app/server"
	appservice "github.com/alter5/project-zurich/internal/app/service"
	appstore "github.com/alter5/project-zurich/internal/app/store"
	"github.com/alter5/project-zurich/internal/infra/logger"
	infraNATS "github.com/alter5/project-zurich/internal/infra/nats"
	infraPostgres "github.com/alter5/project-zurich/internal/infra/postgres"
	infraPrometheus "github.com/alter5/project-zurich/internal/infra/prometheus"
	infraRedis "github.com/alter5/project-zurich/internal/infra/redis"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	// Store selection: direct Postgres when a DSN is present, the REST
	// store when only Supabase credentials are, and the in-memory fallback
	// when neither is configured. The fallback is a configuration-absence
	// path, not a resilience mechanism: a configured store that fails at
	// request time surfaces as a server error.
	var st appstore.Store
	switch {
	case cfg.Postgres.Configured():
		gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
		if err != nil {
			log.Fatal("Failed to open GORM connection", zap.Error(err))
		}
		sqlDB, err := gormDB.DB()
		if err != nil {
			log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
		}
		defer sqlDB.Close()

		if err := infraPostgres.AutoMigrate(ctx, gormDB,
			&appmodel.Visitor{}, &appmodel.AnalyticsEvent{}); err != nil {
			log.Fatal("Failed to run database migrations", zap.Error(err))
		}

		pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			log.Fatal("Failed to connect to Postgres", zap.Error(err))
		}
		defer pool.Close()

		st = appstore.NewPostgresStore(gormDB, pool)
		log.Info("Connected to Postgres record store")

	case cfg.Supabase.Configured():
		st, err = appstore.NewSupabaseStore(cfg.Supabase)
		if err != nil {
			log.Fatal("Failed to build Supabase store", zap.Error(err))
		}
		log.Info("Using Supabase record store", zap.String("url", cfg.Supabase.URL))

	default:
		st = appstore.NewMemoryStore()
		log.Warn("Record store credentials not configured, using in-memory fallback")
	}

	// Redis is only used for rate limiting; a missing or unreachable Redis
	// must never take tracking down.
	var redisClient *redis.Client
	if cfg.Redis.Configured() {
		redisClient, err = infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, rate limiting disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Info("Connected to Redis successfully")
		}
	}

	// NATS mirrors accepted events for downstream consumers; optional.
	var publisher *appservice.EventPublisher
	if cfg.NATS.Configured() {
		natsConn, js, err := infraNATS.Connect(cfg.NATS)
		if err != nil {
			log.Warn("Failed to connect to NATS, event mirroring disabled", zap.Error(err))
		} else {
			defer natsConn.Drain()
			publisher = appservice.NewEventPublisher(js, log)
			if err := publisher.EnsureStream(); err != nil {
				log.Warn("Failed to ensure analytics stream, event mirroring disabled", zap.Error(err))
				publisher = nil
			} else {
				log.Info("Connected to NATS successfully")
			}
		}
	}

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server", zap.String("addr", promServer.Addr))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	tracking := appservice.NewTrackingService(st, publisher, log)

	srv := appserver.New(appserver.Dependencies{
		Logger:   log,
		Tracking: tracking,
		Redis:    redisClient,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting HTTP server",
		zap.String("addr", addr),
		zap.String("store", st.Source()),
	)
	if err := srv.Listen(addr); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}
