package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	TelegramToken  string
	DatabaseURL    string
	LogLevel       string
	PrometheusPort string
	Port           string
	MigrationsPath string

	ResolverTimeout time.Duration
	TransferTTL     time.Duration
	WarnCooldown    time.Duration
	KickCooldown    time.Duration
	AutobanWarnings int

	APIRPS   float64
	APIBurst int
}

// UsesMemoryStore reports whether no database is configured.
func (c *Config) UsesMemoryStore() bool {
	return c.DatabaseURL == ""
}

// Load loads configuration from environment variables, reading a .env file
// first when one exists. Variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		PrometheusPort: getEnvOrDefault("PROMETHEUS_PORT", "9090"),
		Port:           getEnvOrDefault("PORT", "8080"),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", "migrations"),
	}

	// Required environment variables
	if cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN"); cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN environment variable is required")
	}

	var err error
	if cfg.ResolverTimeout, err = durationEnv("RESOLVER_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.TransferTTL, err = durationEnv("TRANSFER_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.WarnCooldown, err = durationEnv("WARN_COOLDOWN", time.Hour); err != nil {
		return nil, err
	}
	if cfg.KickCooldown, err = durationEnv("KICK_COOLDOWN", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AutobanWarnings, err = intEnv("AUTOBAN_WARNINGS", 5); err != nil {
		return nil, err
	}
	if cfg.APIBurst, err = intEnv("API_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.APIRPS, err = floatEnv("API_RPS", 5); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration such as 90s or 15m, got %q", key, raw)
	}
	return d, nil
}

func intEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return n, nil
}

func floatEnv(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", key, raw)
	}
	return f, nil
}
