package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vestigas/delivery-ingest/config"
	"github.com/vestigas/delivery-ingest/internal/data"
	httpx "github.com/vestigas/delivery-ingest/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil || cfg.Services == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler := httpx.NewRouter(httpx.RouterServices{
		Ingest:     cfg.Services.Ingest,
		Deliveries: cfg.Services.Deliveries,
		Logger:     logger,
		Metrics:    cfg.Services.Metrics,
	})

	server := &http.Server{
		Addr:              appCfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	return server
}

// Infrastructure bundles the shared connections the application owns.
type Infrastructure struct {
	DB    *sql.DB
	Redis redis.UniversalClient
}

// InitInfrastructure connects to Postgres and, when enabled, Redis, and
// applies pending migrations.
func InitInfrastructure(cfg *config.AppConfig, logger *slog.Logger) (*Infrastructure, error) {
	dbCfg := DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	}

	db, err := ConnectDB(dbCfg)
	if err != nil {
		return nil, err
	}

	if cfg.Postgres.RunMigrationsOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := data.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations applied")
	}

	redisClient, err := ConnectRedis(dbCfg)
	if err != nil {
		logger.Warn("redis unavailable, job status cache disabled", "error", err)
		redisClient = nil
	}

	return &Infrastructure{DB: db, Redis: redisClient}, nil
}

// Close releases the infrastructure connections.
func (i *Infrastructure) Close() {
	if i.Redis != nil {
		_ = i.Redis.Close()
	}
	if i.DB != nil {
		_ = i.DB.Close()
	}
}

// RunWithShutdown blocks until SIGINT or SIGTERM, then shuts the server
// down gracefully and drains in-flight ingestion jobs.
func RunWithShutdown(cfg *config.AppConfig, server *http.Server, services *ServiceContainer, logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.Info("shutdown signal received", "signal", sig.String())

	grace := 30 * time.Second
	if cfg != nil {
		grace = cfg.Ingest.ShutdownGrace
	}
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
	}
	if services != nil && services.Ingest != nil {
		if err := services.Ingest.Shutdown(ctx); err != nil {
			logger.Warn("ingestion jobs still in flight at shutdown deadline", "error", err)
		}
	}
	logger.Info("shutdown complete")
}
