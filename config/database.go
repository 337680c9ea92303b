package config

import "time"

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"ingest"`
	Password string `env:"PASSWORD"                envDefault:"ingest"`
	Name     string `env:"NAME"                    envDefault:"ingest"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration for the job status cache.
type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`

	// Enabled toggles the job status cache. The service runs fine without
	// it; status polls just always hit the database.
	Enabled bool `env:"ENABLED" envDefault:"true"`

	// JobTTL is how long terminal job statuses stay cached.
	JobTTL time.Duration `env:"JOB_TTL" envDefault:"15m"`
}
