package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	"github.com/kosarica/basket-service/config"
	_ "github.com/kosarica/basket-service/docs"
	"github.com/kosarica/basket-service/internal/database"
	"github.com/kosarica/basket-service/internal/handlers"
	"github.com/kosarica/basket-service/internal/middleware"
	"github.com/kosarica/basket-service/internal/optimizer"
	"github.com/kosarica/basket-service/internal/telemetry"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("Server exited")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	logger.Info().Msg("Starting basket service")

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry, telemetry.Options{})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		return errors.New("DATABASE_URL not set")
	}

	if err := database.Connect(ctx, dbURL, database.PoolConfig{
		MaxConns:    cfg.Database.MaxConnections,
		MinConns:    cfg.Database.MinConnections,
		MaxLifetime: cfg.Database.MaxConnLifetime,
		MaxIdleTime: cfg.Database.MaxConnIdleTime,
	}); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	logger.Info().Msg("Database connected")

	metrics := optimizer.NewMetricsRecorder()
	source := optimizer.NewResilientSource(
		database.NewPostgresPriceSource(database.Pool()),
		&cfg.Optimizer,
		metrics,
		*logger,
	)
	engine := optimizer.NewEngine(source, &cfg.Optimizer, metrics).WithLogger(*logger)

	handlers.InitOptimizer(engine)
	handlers.InitHealth(source.Breaker())

	logger.Info().
		Ints64("online_store_ids", engine.OnlineStoreIDs()).
		Int("default_top_n", cfg.Optimizer.DefaultTopN).
		Float64("default_radius_km", cfg.Optimizer.DefaultRadiusKm).
		Msg("Optimizer ready")

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      newRouter(cfg, *logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// newRouter wires middleware and routes. Handlers must be initialized first.
func newRouter(cfg *config.Config, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(logger))

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	internal := router.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware(cfg.Auth.InternalAPIKey))
	internal.Use(middleware.ServiceRateLimitMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.Burst,
	}))
	{
		internal.GET("/health", handlers.HealthCheck)

		basket := internal.Group("/basket")
		{
			basket.POST("/best-stores", handlers.BestStores)
			basket.POST("/best-online-stores", handlers.BestOnlineStores)
		}

		deals := internal.Group("/deals")
		{
			deals.GET("/nearby", handlers.NearbyDeals)
		}
	}

	return router
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "basket-service").Logger()
	return &logger
}
