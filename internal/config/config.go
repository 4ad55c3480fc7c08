// Package config loads and validates the process configuration from
// environment variables (optionally seeded from a .env file).
package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Telegram bot tokens look like "123456789:AAabc_def-123".
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Config is the full process configuration.
type Config struct {
	// BotToken is the messaging-platform credential.
	BotToken string `env:"BOT_TOKEN,required"`

	// WebhookURL is the externally reachable base URL; the webhook is
	// registered at WebhookURL + "/webhook".
	WebhookURL string `env:"WEBHOOK_URL,required"`

	// Port is the HTTP listen port.
	Port int `env:"PORT" envDefault:"3000"`

	// Environment selects deployment behavior; "development" enables the
	// long-polling fallback when webhook registration fails.
	Environment string `env:"APP_ENV" envDefault:"production"`

	// TestMode shortens the subscription duration and sweep interval for
	// fast iteration.
	TestMode bool `env:"TEST_MODE" envDefault:"false"`

	// StoreBackend selects the persistence backend: "file" or "sqlite".
	StoreBackend string `env:"STORE_BACKEND" envDefault:"file"`

	// DataPath is the directory holding the database file.
	DataPath string `env:"DATA_PATH" envDefault:"./data"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !tokenPattern.MatchString(c.BotToken) {
		return fmt.Errorf("invalid BOT_TOKEN format")
	}
	if c.StoreBackend != "file" && c.StoreBackend != "sqlite" {
		return fmt.Errorf("invalid STORE_BACKEND %q (want file or sqlite)", c.StoreBackend)
	}
	return nil
}

// Development reports whether the process runs in the development environment.
func (c *Config) Development() bool {
	return c.Environment == "development"
}

// SubscriptionDuration is how long a granted membership lasts.
func (c *Config) SubscriptionDuration() time.Duration {
	if c.TestMode {
		return 2 * time.Minute
	}
	return 30 * 24 * time.Hour
}

// SweepInterval is how often the expiry sweeper runs.
func (c *Config) SweepInterval() time.Duration {
	if c.TestMode || c.Development() {
		return time.Minute
	}
	return time.Hour
}

// SubscriptionLabel is the human-readable duration used in messages.
func (c *Config) SubscriptionLabel() string {
	if c.TestMode {
		return "2 minute"
	}
	return "30-day"
}
