package config

// PartnersConfig contains the upstream logistics partner endpoints. The
// environment variable names match what operations already provisions for
// this service.
type PartnersConfig struct {
	// LogisticsAURL is the base URL for the flat-schema partner endpoint.
	LogisticsAURL string `env:"LOGISTICS_A_URL" envDefault:"http://localhost:9001/deliveries"`

	// LogisticsBURL is the base URL for the nested-schema partner endpoint.
	LogisticsBURL string `env:"LOGISTICS_B_URL" envDefault:"http://localhost:9002/shipments"`
}
