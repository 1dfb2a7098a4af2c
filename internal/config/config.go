package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process-wide settings read from the environment.
type Config struct {
	DatabaseURL       string
	ServerPort        string
	JWTSecret         string
	AllowedOrigins    string
	RedisURL          string // optional; empty disables the cross-instance job lock
	LogLevel          string
	BagCountTolerance int
	ReconcileInterval time.Duration // 0 disables the periodic reconciliation loop
}

// Load reads .env (if present) and the process environment, applying defaults.
// It fails on values that are present but malformed, and when DATABASE_URL or
// JWT_SECRET is missing.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ServerPort:        getenv("SERVER_PORT", "8080"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		AllowedOrigins:    os.Getenv("ALLOWED_ORIGINS"),
		RedisURL:          os.Getenv("REDIS_URL"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		BagCountTolerance: 5,
		ReconcileInterval: 15 * time.Minute,
	}

	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET environment variable not set")
	}
	if _, err := strconv.Atoi(cfg.ServerPort); err != nil {
		return cfg, fmt.Errorf("invalid SERVER_PORT %q: must be numeric", cfg.ServerPort)
	}

	if v := os.Getenv("BAG_COUNT_TOLERANCE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("invalid BAG_COUNT_TOLERANCE %q: must be a non-negative integer", v)
		}
		cfg.BagCountTolerance = n
	}

	if v := os.Getenv("RECONCILE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("invalid RECONCILE_INTERVAL %q: must be a non-negative duration such as 15m", v)
		}
		cfg.ReconcileInterval = d
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
