// Package config loads gateway configuration from the environment so main
// stays lean.
package config

import (
	"fmt"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"

	"tokengate/internal/identity"
	"tokengate/internal/simulation"
)

// Config is the full gateway configuration.
type Config struct {
	Addr string `env:"GATEWAY_ADDR" envDefault:":8080"`

	JWTSigningKey string        `env:"JWT_SIGNING_KEY,required"`
	JWTIssuer     string        `env:"JWT_ISSUER" envDefault:"tokengate"`
	AccessTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`

	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`
	AppleClientID  string `env:"APPLE_CLIENT_ID"`

	KeyCacheTTL time.Duration `env:"KEY_CACHE_TTL" envDefault:"1h"`
	JWKSTimeout time.Duration `env:"JWKS_TIMEOUT" envDefault:"5s"`
	BcryptCost  int           `env:"BCRYPT_COST" envDefault:"10"`

	// RedisURL switches the session store from memory to Redis when set.
	RedisURL string `env:"REDIS_URL"`
	// PostgresDSN switches the user directory from memory to Postgres when set.
	PostgresDSN string `env:"POSTGRES_DSN"`

	// KafkaBrokers switches audit publishing from in-process to Kafka when set.
	KafkaBrokers []string `env:"KAFKA_BROKERS"`
	AuditTopic   string   `env:"AUDIT_TOPIC" envDefault:"gateway.audit"`

	Circuit    Circuit    `envPrefix:"CIRCUIT_"`
	Simulation Simulation `envPrefix:"SIM_"`
}

// Circuit tunes the breakers guarding downstream dependencies.
type Circuit struct {
	FailureThreshold int           `env:"FAILURE_THRESHOLD" envDefault:"5"`
	SuccessThreshold int           `env:"SUCCESS_THRESHOLD" envDefault:"3"`
	Cooldown         time.Duration `env:"COOLDOWN" envDefault:"30s"`
}

// Simulation configures test-only fault injection. Disabled unless
// SIM_ENABLED is set; a production deployment never sets it.
type Simulation struct {
	Enabled         bool `env:"ENABLED"`
	MaintenanceMode bool `env:"MAINTENANCE_MODE"`

	// GOOGLE_DOWN / APPLE_DOWN are shorthand for a forced 503; the STATUS
	// variables force an exact response status and win when both are set.
	GoogleDown   bool `env:"GOOGLE_DOWN"`
	AppleDown    bool `env:"APPLE_DOWN"`
	GoogleStatus int  `env:"GOOGLE_STATUS"`
	AppleStatus  int  `env:"APPLE_STATUS"`

	Latency          time.Duration `env:"LATENCY"`
	LatencyThreshold time.Duration `env:"LATENCY_THRESHOLD" envDefault:"2s"`
	ForceCircuitOpen []string      `env:"FORCE_CIRCUIT_OPEN"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config from environment: %w", err)
	}
	return &cfg, nil
}

// SimulationSettings converts the simulation section into runtime settings,
// returning nil when fault injection is disabled.
func (c *Config) SimulationSettings() *simulation.Settings {
	if !c.Simulation.Enabled {
		return nil
	}
	forced := make(map[string]bool, len(c.Simulation.ForceCircuitOpen))
	for _, name := range c.Simulation.ForceCircuitOpen {
		forced[name] = true
	}
	return &simulation.Settings{
		MaintenanceMode: c.Simulation.MaintenanceMode,
		ProviderStatus: map[identity.Provider]int{
			identity.ProviderGoogle: providerStatus(c.Simulation.GoogleStatus, c.Simulation.GoogleDown),
			identity.ProviderApple:  providerStatus(c.Simulation.AppleStatus, c.Simulation.AppleDown),
		},
		Latency:          c.Simulation.Latency,
		LatencyThreshold: c.Simulation.LatencyThreshold,
		ForceCircuitOpen: forced,
	}
}

func providerStatus(status int, down bool) int {
	if status != 0 {
		return status
	}
	if down {
		return http.StatusServiceUnavailable
	}
	return 0
}

// Audiences maps each configured provider to its expected client id.
// Providers without a configured client id are not accepted.
func (c *Config) Audiences() map[identity.Provider]string {
	audiences := make(map[identity.Provider]string, 2)
	if c.GoogleClientID != "" {
		audiences[identity.ProviderGoogle] = c.GoogleClientID
	}
	if c.AppleClientID != "" {
		audiences[identity.ProviderApple] = c.AppleClientID
	}
	return audiences
}
