package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Realm   RealmConfig
	Logging LogConfig
	Metrics MetricsConfig
}

// RealmConfig holds sandbox realm defaults.
type RealmConfig struct {
	EvalTimeout   time.Duration `envconfig:"REALM_EVAL_TIMEOUT" default:"5s"`
	MaxCallStack  int           `envconfig:"REALM_MAX_CALL_STACK" default:"1024"`
	KeepAlive     bool          `envconfig:"REALM_KEEP_ALIVE" default:"false"`
	SanitizeInput bool          `envconfig:"REALM_SANITIZE_INPUT" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// MetricsConfig holds metrics endpoint configuration.
type MetricsConfig struct {
	Listen string `envconfig:"METRICS_LISTEN" default:""`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Realm: RealmConfig{
			EvalTimeout:   5 * time.Second,
			MaxCallStack:  1024,
			SanitizeInput: true,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}
