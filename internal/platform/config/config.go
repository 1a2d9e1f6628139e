// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full server configuration, loaded from MEDSIM_* variables.
type Config struct {
	Addr string `envconfig:"ADDR" default:":8080"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	TickRate time.Duration `envconfig:"TICK_RATE" default:"2s"`

	// DBDriver selects the storage backend: "sqlite" or "postgres".
	DBDriver   string `envconfig:"DB_DRIVER" default:"sqlite"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"medsim.db"`

	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"medsim"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:""`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"medsim"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`

	// RedisAddr empty disables the snapshot cache.
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	SnapshotTTL   time.Duration `envconfig:"SNAPSHOT_TTL" default:"30m"`

	// TuningProfile selects buffer/pool sizing: "default", "low", "stress".
	TuningProfile string `envconfig:"TUNING_PROFILE" default:"default"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("MEDSIM", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot run with.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.TickRate <= 0 {
		return fmt.Errorf("TICK_RATE must be positive, got %s", c.TickRate)
	}
	switch c.TuningProfile {
	case "default", "low", "stress":
	default:
		return fmt.Errorf("unsupported TUNING_PROFILE %q", c.TuningProfile)
	}
	return nil
}
