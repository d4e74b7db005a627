package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all daemon configuration.
type Config struct {
	Server    ServerConfig
	Session   SessionConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8090"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// SessionConfig holds defaults applied to new sessions.
type SessionConfig struct {
	Shell                 string `envconfig:"DEFAULT_SHELL" default:""`
	Rows                  uint16 `envconfig:"SESSION_ROWS" default:"24"`
	Cols                  uint16 `envconfig:"SESSION_COLS" default:"80"`
	ForceHeadless         bool   `envconfig:"FORCE_HEADLESS" default:"false"`
	AllowHeadlessFallback bool   `envconfig:"ALLOW_HEADLESS_FALLBACK" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
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
		Server: ServerConfig{
			Port: "8090",
			Host: "0.0.0.0",
		},
		Session: SessionConfig{
			Rows:                  24,
			Cols:                  80,
			AllowHeadlessFallback: true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// DefaultShell resolves the interactive shell for a session that did not
// specify one: configured default, then $SHELL, then /bin/sh.
func (c SessionConfig) DefaultShell() string {
	if c.Shell != "" {
		return c.Shell
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}
