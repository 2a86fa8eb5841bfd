// Package app assembles the service and manages its lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/shorelinehq/oysterly/internal/auth"
	"github.com/shorelinehq/oysterly/internal/config"
	"github.com/shorelinehq/oysterly/internal/event"
	httphandler "github.com/shorelinehq/oysterly/internal/handler/http"
	pgrepo "github.com/shorelinehq/oysterly/internal/repository/postgres"
	redisrepo "github.com/shorelinehq/oysterly/internal/repository/redis"
	"github.com/shorelinehq/oysterly/internal/service"
	"github.com/shorelinehq/oysterly/migrations"
	"github.com/shorelinehq/oysterly/pkg/database"
	"github.com/shorelinehq/oysterly/pkg/health"
	"github.com/shorelinehq/oysterly/pkg/kafka"
	"github.com/shorelinehq/oysterly/pkg/middleware"
	"github.com/shorelinehq/oysterly/pkg/tracing"
)

// App holds the assembled service and its resources.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pool           *pgxpool.Pool
	redisClient    *redis.Client
	producer       *kafka.Producer
	server         *http.Server
	tracerShutdown func(context.Context) error
}

// New connects to all backing services, runs migrations and wires the HTTP
// server.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	producer := kafka.NewProducer(kafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)

	prometheus.MustRegister(database.NewPoolStatsCollector(pool, cfg.ServiceName))

	reviewRepo := pgrepo.NewReviewRepository(pool)
	profileRepo := pgrepo.NewProfileRepository(pool)
	profileCache := redisrepo.NewProfileCache(redisClient, cfg.ProfileCacheTTL)

	events := event.NewProducer(producer)
	reviewSvc := service.NewReviewService(reviewRepo, events, logger)
	profileSvc := service.NewProfileService(profileRepo, profileCache, logger)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)

	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.Register("kafka", producer.Ping)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSOrigins
	corsCfg.Environment = cfg.Environment

	router := httphandler.NewRouter(httphandler.RouterConfig{
		ServiceName:   cfg.ServiceName,
		Logger:        logger,
		Reviews:       httphandler.NewReviewHandler(reviewSvc, logger),
		Profiles:      httphandler.NewProfileHandler(profileSvc, logger),
		Health:        healthHandler,
		TokenValidate: jwtManager.ValidateAccessToken,
		CORS:          corsCfg,
		RateLimit:     cfg.RateLimit(),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		producer:       producer,
		server:         server,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run serves HTTP until the context is canceled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", slog.String("error", err.Error()))
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close failed", slog.String("error", err.Error()))
	}
	if err := a.redisClient.Close(); err != nil {
		a.logger.Error("redis close failed", slog.String("error", err.Error()))
	}
	a.pool.Close()

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown failed", slog.String("error", err.Error()))
	}

	return nil
}
