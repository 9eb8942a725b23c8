// Package config loads runtime configuration from .env files and the
// environment.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the coordinator.
type Config struct {
	DBPath  string `env:"OH_DB_PATH"`
	Port    int    `env:"OH_PORT" envDefault:"8080"`
	BaseURL string `env:"OH_BASE_URL" envDefault:"http://localhost:8080"`
	DevMode bool   `env:"OH_DEV_MODE"`

	AgentID string `env:"OH_AGENT_ID" envDefault:"default"`

	SMTPHost string `env:"OH_SMTP_HOST"`
	SMTPPort string `env:"OH_SMTP_PORT" envDefault:"587"`
	SMTPUser string `env:"OH_SMTP_USER"`
	SMTPPass string `env:"OH_SMTP_PASS"`
	SMTPFrom string `env:"OH_SMTP_FROM"`

	GeneratorURL string `env:"OH_GENERATOR_URL"`
	GeneratorKey string `env:"OH_GENERATOR_KEY"`

	WebhookURL string `env:"OH_WEBHOOK_URL"`
}

// Load reads .env (if present) and the environment into a Config.
func Load() (Config, error) {
	// A missing .env is fine; explicit env vars still apply.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}

	return cfg, nil
}

// SMTPConfigured returns true if outbound email settings are present.
func (c Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}
