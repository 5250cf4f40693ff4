package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                string
	DBPath              string
	LogLevel            string // debug | info | warn | error
	QuoteCacheTTL       time.Duration
	ProviderMinInterval time.Duration
	InitialCash         float64
}

func Load() Config {
	return Config{
		Port:                getEnv("PORT", "5001"),
		DBPath:              getEnv("DB_PATH", "data/portfolio.db"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		QuoteCacheTTL:       time.Duration(getEnvInt("QUOTE_CACHE_TTL_SECONDS", 300)) * time.Second,
		ProviderMinInterval: time.Duration(getEnvInt("PROVIDER_MIN_INTERVAL_SECONDS", 3)) * time.Second,
		InitialCash:         getEnvFloat("INITIAL_CASH", 100000),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return def
}
