package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "5001" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.QuoteCacheTTL != 300*time.Second {
		t.Errorf("cache ttl = %v", cfg.QuoteCacheTTL)
	}
	if cfg.ProviderMinInterval != 3*time.Second {
		t.Errorf("min interval = %v", cfg.ProviderMinInterval)
	}
	if cfg.InitialCash != 100000 {
		t.Errorf("initial cash = %v", cfg.InitialCash)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("QUOTE_CACHE_TTL_SECONDS", "60")
	t.Setenv("PROVIDER_MIN_INTERVAL_SECONDS", "5")
	t.Setenv("INITIAL_CASH", "2500.50")

	cfg := Load()
	if cfg.Port != "9000" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.QuoteCacheTTL != time.Minute {
		t.Errorf("cache ttl = %v", cfg.QuoteCacheTTL)
	}
	if cfg.ProviderMinInterval != 5*time.Second {
		t.Errorf("min interval = %v", cfg.ProviderMinInterval)
	}
	if cfg.InitialCash != 2500.50 {
		t.Errorf("initial cash = %v", cfg.InitialCash)
	}
}

func TestLoadIgnoresGarbage(t *testing.T) {
	t.Setenv("QUOTE_CACHE_TTL_SECONDS", "not-a-number")
	t.Setenv("INITIAL_CASH", "-5")

	cfg := Load()
	if cfg.QuoteCacheTTL != 300*time.Second {
		t.Errorf("cache ttl = %v, want the default kept", cfg.QuoteCacheTTL)
	}
	if cfg.InitialCash != 100000 {
		t.Errorf("initial cash = %v, want the default kept", cfg.InitialCash)
	}
}
