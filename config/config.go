// Package config loads server configuration from the environment.
// A local .env file is honored for development, matching how the rest of
// the tooling expects to be configured.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Port     int    `envconfig:"PORT" default:"8080"`
		LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	}

	DB struct {
		// Path to the SQLite database file. ":memory:" for ephemeral runs.
		Path string `envconfig:"DB_PATH" default:"lending.db"`
	}

	Auth struct {
		// Bcrypt hash of the operator password. Login is disabled when empty.
		PasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`
		JWTSecret    string `envconfig:"JWT_SECRET"`
		// Token lifetime in hours.
		TokenTTLHours int `envconfig:"TOKEN_TTL_HOURS" default:"24"`
	}

	Sweep struct {
		Enabled bool `envconfig:"SWEEP_ENABLED" default:"true"`
		// Cron expression for the reconciliation sweep.
		Schedule string `envconfig:"SWEEP_SCHEDULE" default:"0 6 * * *"`
	}

	CORS struct {
		AllowedOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`
	}
}

func Load() (*Config, error) {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}
