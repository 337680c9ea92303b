package config

import "time"

// IngestConfig contains fetch orchestration and retry configuration.
type IngestConfig struct {
	// FetchTimeout bounds each individual HTTP request to a partner.
	FetchTimeout time.Duration `env:"INGEST_FETCH_TIMEOUT" envDefault:"5s"`

	// MaxRetries is how many times a retriable partner failure is retried
	// after the initial attempt.
	MaxRetries int `env:"INGEST_MAX_RETRIES" envDefault:"3"`

	// BaseBackoff is the first retry delay; it doubles per attempt.
	BaseBackoff time.Duration `env:"INGEST_BASE_BACKOFF" envDefault:"1s"`

	// Jitter randomizes retry delays to avoid thundering herds.
	Jitter bool `env:"INGEST_JITTER" envDefault:"true"`

	// ShutdownGrace is how long in-flight jobs get to finish on shutdown.
	ShutdownGrace time.Duration `env:"INGEST_SHUTDOWN_GRACE" envDefault:"30s"`
}

// Sanitize applies guardrails to ingest configuration values.
func (c *IngestConfig) Sanitize() {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 5 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 30 * time.Second
	}
}
