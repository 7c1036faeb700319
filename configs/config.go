package configs

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Market   MarketConfig
	Monitor  MonitorConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
	// Driver selects the store backend: "postgres" or "memory".
	Driver string
}

// RedisConfig holds Redis configuration; empty URL disables alert publishing
type RedisConfig struct {
	URL string
}

// MarketConfig holds market data configuration
type MarketConfig struct {
	BaseURL string
}

// MonitorConfig holds risk monitor configuration
type MonitorConfig struct {
	SweepInterval time.Duration
	LockTimeout   time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("GO_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:    getEnv("DATABASE_URL", ""),
			Driver: getEnv("STORE_DRIVER", "postgres"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Market: MarketConfig{
			BaseURL: getEnv("MARKET_DATA_URL", "https://api.binance.com"),
		},
		Monitor: MonitorConfig{
			SweepInterval: getDurationSeconds("MONITOR_SWEEP_SECONDS", 15*time.Second),
			LockTimeout:   getDurationSeconds("ACCOUNT_LOCK_TIMEOUT_SECONDS", 5*time.Second),
		},
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationSeconds reads a whole-seconds env var as a duration
func getDurationSeconds(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}
