// Package config loads the runtime configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/teemow/listunsub/internal/google"
	"github.com/teemow/listunsub/internal/instrumentation"
	"github.com/teemow/listunsub/internal/logging"
)

// Config is the application configuration. File paths are relative to the
// working directory unless absolute.
type Config struct {
	// Files
	DatabasePath    string `env:"LISTUNSUB_DATABASE" envDefault:"unsubscribed.db"`
	BlacklistPath   string `env:"LISTUNSUB_BLACKLIST" envDefault:"blacklist.txt"`
	CredentialsPath string `env:"LISTUNSUB_CREDENTIALS" envDefault:"credentials.json"`
	TokenPath       string `env:"LISTUNSUB_TOKEN" envDefault:"token.json"`

	// Auth
	AuthMode string `env:"LISTUNSUB_AUTH_MODE" envDefault:"interactive"` // "interactive" or "headless"

	// Search and compose
	NewerThan      string `env:"LISTUNSUB_NEWER_THAN" envDefault:"1y"`
	DefaultSubject string `env:"LISTUNSUB_DEFAULT_SUBJECT" envDefault:"unsubscribe"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
	NoColor   bool   `env:"NO_COLOR"`

	// MetricsAddr enables the Prometheus /metrics listener while a run is
	// in progress, e.g. "127.0.0.1:9090".
	MetricsAddr string `env:"LISTUNSUB_METRICS_ADDR"`

	Instrumentation instrumentation.Config
}

// Load reads an optional .env file from the working directory and parses
// the environment.
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Parse builds a Config from the given variables only.
func Parse(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks values that cannot be expressed as struct tags.
func (c *Config) Validate() error {
	switch c.AuthMode {
	case google.ModeInteractive, google.ModeHeadless:
	default:
		return fmt.Errorf("invalid auth mode %q, must be one of: interactive, headless", c.AuthMode)
	}

	switch c.LogFormat {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid log format %q, must be one of: text, json", c.LogFormat)
	}

	if c.DatabasePath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.NewerThan == "" {
		return fmt.Errorf("search window must not be empty")
	}

	if err := c.Instrumentation.Validate(); err != nil {
		return fmt.Errorf("invalid instrumentation config: %w", err)
	}
	return nil
}
