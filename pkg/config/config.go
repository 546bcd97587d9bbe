package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port           string
	Env            string
	LogFormat      string
	AllowedOrigins []string

	// Storage configuration
	ConfigDir     string
	ExchangesFile string
	WatchInterval time.Duration

	// Redis configuration (optional, in-memory price cache when empty)
	RedisURL      string
	RedisPassword string

	// Pricing configuration
	CoinGeckoAPIKey      string
	PriceCacheTTL        time.Duration
	PriceRefreshInterval time.Duration // 0 disables background refresh

	// Simulated trading configuration
	TradeLatency time.Duration
	TradeLogPath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8765"),
		Env:             getEnv("ENV", "development"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		AllowedOrigins:  getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:5174"}),
		ConfigDir:       getEnv("QT_CONFIG_DIR", "config"),
		ExchangesFile:   getEnv("QT_EXCHANGES_FILE", ""),
		WatchInterval:   getEnvAsDuration("WATCH_INTERVAL", 2*time.Second),
		RedisURL:        getEnv("REDIS_URL", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		CoinGeckoAPIKey: getEnv("COINGECKO_API_KEY", ""),
		PriceCacheTTL:   getEnvAsDuration("PRICE_CACHE_TTL", 60*time.Second),

		PriceRefreshInterval: getEnvAsDuration("PRICE_REFRESH_INTERVAL", 45*time.Second),
		TradeLatency:    getEnvAsDuration("TRADE_LATENCY", time.Second),
		TradeLogPath:    getEnv("TRADE_LOG_PATH", defaultTradeLogPath()),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present
func (c *Config) Validate() error {
	if c.ConfigDir == "" {
		return fmt.Errorf("QT_CONFIG_DIR is required")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %q", c.Port)
	}

	if c.PriceCacheTTL <= 0 {
		return fmt.Errorf("PRICE_CACHE_TTL must be positive, got %v", c.PriceCacheTTL)
	}

	if c.TradeLatency < 0 {
		return fmt.Errorf("TRADE_LATENCY cannot be negative, got %v", c.TradeLatency)
	}

	if c.PriceRefreshInterval < 0 {
		return fmt.Errorf("PRICE_REFRESH_INTERVAL cannot be negative, got %v", c.PriceRefreshInterval)
	}

	if c.WatchInterval <= 0 {
		return fmt.Errorf("WATCH_INTERVAL must be positive, got %v", c.WatchInterval)
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// defaultTradeLogPath mirrors the desktop layout: ~/QuickTradeLogs/trade_executor.log
func defaultTradeLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, "QuickTradeLogs", "trade_executor.log")
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsSlice splits a comma separated environment variable
func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
