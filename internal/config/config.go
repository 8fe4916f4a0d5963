// Package config loads the application configuration from the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"siteforge/internal/db"
)

// Config is the full application configuration.
type Config struct {
	Port        string
	Environment string

	JWTSecret        string
	StripeSecretKey  string
	OpenRouterAPIKey string
	CopyModel        string

	// Rate limiting for the public API.
	RateLimitPerMinute int
	RateLimitBurst     int

	// AgentTimeout bounds one agent step; zero disables the bound.
	AgentTimeout time.Duration

	Database *db.Config
	Redis    *db.RedisConfig
}

// Load reads configuration from environment variables. JWT_SECRET is
// required outside development.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		StripeSecretKey:    os.Getenv("STRIPE_SECRET_KEY"),
		OpenRouterAPIKey:   os.Getenv("OPENROUTER_API_KEY"),
		CopyModel:          os.Getenv("COPY_MODEL"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 300),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 30),
		Database:           db.ConfigFromEnv(),
		Redis:              db.RedisConfigFromEnv(),
	}

	if timeout := os.Getenv("AGENT_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid AGENT_TIMEOUT: %w", err)
		}
		cfg.AgentTimeout = d
	}

	if cfg.JWTSecret == "" {
		if cfg.Environment == "production" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "dev-only-secret-do-not-use-in-production"
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
