package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/vestigas/delivery-ingest/config"
	"github.com/vestigas/delivery-ingest/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	cfgPtr := &cfg

	logStartupInfo(ctx, logger, cfgPtr)

	if err = bootstrap.ValidateConfig(cfgPtr); err != nil {
		return err
	}

	infra, err := bootstrap.InitInfrastructure(cfgPtr, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	services, err := bootstrap.NewServices(bootstrap.ServicesConfig{
		Config: cfgPtr,
		DB:     infra.DB,
		Redis:  infra.Redis,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	server := bootstrap.StartHTTPServer(&bootstrap.HTTPServerConfig{
		Config:   cfgPtr,
		Services: services,
		Logger:   logger,
	})

	bootstrap.RunWithShutdown(cfgPtr, server, services, logger)
	return nil
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting delivery ingest service",
		"db_host", cfg.Postgres.Host,
		"db_port", cfg.Postgres.Port,
		"db_name", cfg.Postgres.Name,
		"http_addr", cfg.HTTP.Addr,
		"partner_a", cfg.Partners.LogisticsAURL != "",
		"partner_b", cfg.Partners.LogisticsBURL != "")
}
