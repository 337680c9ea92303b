package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsParse(t *testing.T) {
	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.True(t, cfg.Postgres.RunMigrationsOnStart)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Redis.JobTTL)
	assert.Equal(t, 5*time.Second, cfg.Ingest.FetchTimeout)
	assert.Equal(t, 3, cfg.Ingest.MaxRetries)
	assert.Equal(t, time.Second, cfg.Ingest.BaseBackoff)
	assert.True(t, cfg.Ingest.Jitter)
	assert.NotEmpty(t, cfg.Partners.LogisticsAURL)
	assert.NotEmpty(t, cfg.Partners.LogisticsBURL)
	assert.False(t, cfg.Observability.Metrics.IsEnabled())
}

func TestPartnerEndpointsFromEnv(t *testing.T) {
	t.Setenv("LOGISTICS_A_URL", "http://partner-a.internal/deliveries")
	t.Setenv("LOGISTICS_B_URL", "http://partner-b.internal/shipments")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))

	assert.Equal(t, "http://partner-a.internal/deliveries", cfg.Partners.LogisticsAURL)
	assert.Equal(t, "http://partner-b.internal/shipments", cfg.Partners.LogisticsBURL)
}

func TestIngestSanitizeClampsBadValues(t *testing.T) {
	cfg := IngestConfig{
		FetchTimeout: -time.Second,
		MaxRetries:   -3,
		BaseBackoff:  0,
	}
	cfg.Sanitize()

	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Zero(t, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.BaseBackoff)
	assert.Equal(t, 30*time.Second, cfg.ShutdownGrace)
}

func TestMetricsSanitizeDisablesWithoutAddress(t *testing.T) {
	cfg := ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "   "}
	cfg.Sanitize()

	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.IsEnabled())
}

func TestDetectDevMode(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.True(t, cfg.IsDev)
}

func TestDBEnvPrefix(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "15432")
	t.Setenv("DB_RUN_MIGRATIONS_ON_START", "false")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))

	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, 15432, cfg.Postgres.Port)
	assert.False(t, cfg.Postgres.RunMigrationsOnStart)
}
