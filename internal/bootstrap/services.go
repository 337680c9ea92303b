package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/vestigas/delivery-ingest/config"
	"github.com/vestigas/delivery-ingest/internal/core"
	"github.com/vestigas/delivery-ingest/internal/data"
	"github.com/vestigas/delivery-ingest/internal/domain/retry"
	"github.com/vestigas/delivery-ingest/internal/observability/statsd"
	"github.com/vestigas/delivery-ingest/internal/partners"
	"github.com/vestigas/delivery-ingest/internal/service"
)

// ServiceContainer holds the constructed services and their shared
// infrastructure.
type ServiceContainer struct {
	Ingest     *service.IngestService
	Deliveries *service.DeliveryService
	Metrics    *statsd.Client
}

// ServicesConfig contains the dependencies needed to build the container.
type ServicesConfig struct {
	Config *config.AppConfig
	DB     *sql.DB
	Redis  redis.UniversalClient // Optional: nil disables the job status cache
	Logger *slog.Logger
}

// NewServices wires repositories, the partner fetch client, and the
// application services.
func NewServices(cfg ServicesConfig) (*ServiceContainer, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("bootstrap: Config is required")
	}
	if cfg.DB == nil {
		return nil, fmt.Errorf("bootstrap: DB is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Config.Observability.Metrics.IsEnabled(),
		Address: cfg.Config.Observability.Metrics.StatsdAddress,
		Prefix:  "delivery_ingest",
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	repoCfg := data.RepoConfig{Logger: logger, TimeProvider: &data.RealTimeProvider{}}
	jobRepo := data.NewJobRepo(cfg.DB, repoCfg)
	deliveryRepo := data.NewDeliveryRepo(cfg.DB, repoCfg)

	var cache core.JobStatusCache
	if cfg.Redis != nil {
		cache = data.NewJobCacheRepo(cfg.Redis, cfg.Config.Redis.JobTTL)
	}

	policy := retry.NewPolicy(retry.PolicyOptions{
		MaxRetries:  cfg.Config.Ingest.MaxRetries,
		BaseBackoff: cfg.Config.Ingest.BaseBackoff,
		Jitter:      cfg.Config.Ingest.Jitter,
		Logger:      logger,
		Metrics:     metrics,
	})

	fetcher, err := partners.NewClient(partners.ClientOptions{
		Store:        deliveryRepo,
		Retry:        policy,
		FetchTimeout: cfg.Config.Ingest.FetchTimeout,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("init partner client: %w", err)
	}

	ingest, err := service.NewIngestService(service.IngestOptions{
		Jobs:     jobRepo,
		Cache:    cache,
		Fetcher:  fetcher,
		Partners: ConfiguredPartners(cfg.Config.Partners),
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("init ingest service: %w", err)
	}

	deliveries, err := service.NewDeliveryService(service.DeliveryOptions{
		Jobs:       jobRepo,
		Deliveries: deliveryRepo,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init delivery service: %w", err)
	}

	return &ServiceContainer{
		Ingest:     ingest,
		Deliveries: deliveries,
		Metrics:    metrics,
	}, nil
}

// ConfiguredPartners returns the partner registrations for the configured
// endpoints, in the fixed registration order used for job stats and error
// reporting.
func ConfiguredPartners(cfg config.PartnersConfig) []partners.Partner {
	var out []partners.Partner
	if cfg.LogisticsAURL != "" {
		out = append(out, partners.Partner{
			Name:        partners.SupplierA,
			BaseURL:     cfg.LogisticsAURL,
			Transformer: partners.PartnerA{},
		})
	}
	if cfg.LogisticsBURL != "" {
		out = append(out, partners.Partner{
			Name:        partners.SupplierB,
			BaseURL:     cfg.LogisticsBURL,
			Transformer: partners.PartnerB{},
		})
	}
	return out
}
