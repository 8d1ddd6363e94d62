package config

import (
	"fmt"
	"os"
)

// Config holds all configuration for the stride CLI.
type Config struct {
	DatabaseURL   string
	RedisURL      string
	MetricsAddr   string
	PolicyFile    string
	MigrationsDir string
	Policy        *Policy
}

// Load reads configuration from environment variables with sensible
// defaults, then overlays the policy file if one is configured.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:   getEnv("STRIDE_DATABASE_URL", "postgres://localhost:5432/stride?sslmode=disable"),
		RedisURL:      getEnv("STRIDE_REDIS_URL", "redis://localhost:6379/0"),
		MetricsAddr:   getEnv("STRIDE_METRICS_ADDR", ""),
		PolicyFile:    getEnv("STRIDE_POLICY_FILE", ""),
		MigrationsDir: getEnv("STRIDE_MIGRATIONS_DIR", "migrations"),
	}

	policy := DefaultPolicy()
	if cfg.PolicyFile != "" {
		loaded, err := LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("load policy file: %w", err)
		}
		policy = loaded
	}
	cfg.Policy = policy

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
