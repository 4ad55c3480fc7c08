package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("valid environment", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "123456789:AAabc_def-123")
		t.Setenv("WEBHOOK_URL", "https://bot.example.com")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Port != 3000 {
			t.Errorf("Port = %d, want default 3000", cfg.Port)
		}
		if cfg.Environment != "production" || cfg.Development() {
			t.Errorf("Environment = %q, want production", cfg.Environment)
		}
		if cfg.StoreBackend != "file" {
			t.Errorf("StoreBackend = %q, want file", cfg.StoreBackend)
		}
	})

	t.Run("empty token", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "")
		t.Setenv("WEBHOOK_URL", "https://bot.example.com")

		if _, err := Load(); err == nil {
			t.Error("Load should fail without BOT_TOKEN")
		}
	})

	t.Run("malformed token", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "not a token")
		t.Setenv("WEBHOOK_URL", "https://bot.example.com")

		if _, err := Load(); err == nil {
			t.Error("Load should reject a token without the id:secret shape")
		}
	})

	t.Run("unknown store backend", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "123456789:AAabc_def-123")
		t.Setenv("WEBHOOK_URL", "https://bot.example.com")
		t.Setenv("STORE_BACKEND", "postgres")

		if _, err := Load(); err == nil {
			t.Error("Load should reject unknown STORE_BACKEND")
		}
	})
}

func TestDerivedDurations(t *testing.T) {
	prod := &Config{Environment: "production"}
	if got := prod.SubscriptionDuration(); got != 30*24*time.Hour {
		t.Errorf("production duration = %v, want 720h", got)
	}
	if got := prod.SweepInterval(); got != time.Hour {
		t.Errorf("production sweep interval = %v, want 1h", got)
	}
	if got := prod.SubscriptionLabel(); got != "30-day" {
		t.Errorf("production label = %q", got)
	}

	test := &Config{Environment: "production", TestMode: true}
	if got := test.SubscriptionDuration(); got != 2*time.Minute {
		t.Errorf("test-mode duration = %v, want 2m", got)
	}
	if got := test.SweepInterval(); got != time.Minute {
		t.Errorf("test-mode sweep interval = %v, want 1m", got)
	}
	if got := test.SubscriptionLabel(); got != "2 minute" {
		t.Errorf("test-mode label = %q", got)
	}

	dev := &Config{Environment: "development"}
	if !dev.Development() {
		t.Error("Development() should be true for development")
	}
	if got := dev.SweepInterval(); got != time.Minute {
		t.Errorf("development sweep interval = %v, want 1m", got)
	}
}
