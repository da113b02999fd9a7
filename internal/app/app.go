package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/avolkov/shortlink/codegen"
	"github.com/avolkov/shortlink/internal/cache"
	"github.com/avolkov/shortlink/internal/config"
	"github.com/avolkov/shortlink/internal/links"
	"github.com/avolkov/shortlink/internal/postgres"
	"github.com/avolkov/shortlink/internal/server"
	"github.com/avolkov/shortlink/internal/users"
)

// App holds the application dependencies and configuration.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	DBPool  *pgxpool.Pool
	Cache   cache.Cache
	Sweeper *links.Sweeper
	Server  *server.Server
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)

	logger.Info("starting application", "env", cfg.App.Environment)

	// Connect to database and ensure the schema exists
	dbPool, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := postgres.Migrate(ctx, dbPool); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	linkCache, err := setupCache(ctx, cfg, logger)
	if err != nil {
		dbPool.Close()
		return nil, err
	}

	// Accounts
	userRepo := users.NewRepository(dbPool, nil)
	userSvc, err := users.NewService(userRepo, users.ServiceConfig{
		Secret:   cfg.Auth.JWTSecret,
		TokenTTL: cfg.Auth.TokenTTL,
	})
	if err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to create user service: %w", err)
	}
	userHandler := users.NewHandler(userSvc, logger)

	// Links
	linkRepo := links.NewRepository(dbPool, nil)
	linkSvc := links.NewService(linkRepo, &links.ServiceConfig{
		Cache:     linkCache,
		Generator: codegen.NewBase62(),
		Logger:    logger,
	})
	linkHandler := links.NewHandler(links.HandlerConfig{
		Service: linkSvc,
		Logger:  logger,
		BaseURL: cfg.Server.BaseURL,
	})

	sweeper := links.NewSweeper(linkRepo, &links.SweeperConfig{
		Cache:    linkCache,
		Logger:   logger,
		Interval: cfg.Cleanup.SweepInterval,
		IdleAge:  cfg.Cleanup.GuestIdleAge,
		Batch:    cfg.Cleanup.BatchSize,
	})

	// Create server
	srv := server.New(cfg, logger, linkHandler, userHandler, userSvc, sweeper)

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"cache_enabled", cfg.Redis.Enabled(),
	)

	return &App{
		Config:  cfg,
		Logger:  logger,
		DBPool:  dbPool,
		Cache:   linkCache,
		Sweeper: sweeper,
		Server:  srv,
	}, nil
}

// Start starts the background sweep and the application server.
func (a *App) Start(ctx context.Context) error {
	a.Sweeper.Start()

	a.Logger.Info("server starting",
		"port", a.Config.Server.Port,
		"base_url", a.Config.Server.BaseURL,
	)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	if a.Sweeper != nil {
		a.Sweeper.Stop()
		a.Logger.Info("background sweep stopped")
	}

	if closer, ok := a.Cache.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.Logger.Warn("failed to close cache", "error", err)
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database connection closed")
	}

	return nil
}

// setupCache returns a Redis cache when one is configured and a no-op
// cache otherwise. All reads then go straight to the database.
func setupCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.Cache, error) {
	if !cfg.Redis.Enabled() {
		logger.Info("cache disabled, serving reads from the database")
		return cache.NewNoop(), nil
	}

	rc, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis cache connected", "addr", cfg.Redis.Addr)
	return rc, nil
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
