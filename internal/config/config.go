// Package config loads the proxy's runtime configuration from the
// environment (and an optional .env file), the way the validator service
// it was adapted from does.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the slasher RPC proxy.
type Config struct {
	// HTTP server
	Host string
	Port int

	// Logging
	LogLevel string

	// Persistent store
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Validator RPC
	RPCURL string

	// Block event source — exactly one of these may be set
	BlocksChannel     string
	BlocksWebsocketURL string
	WSReconnectBackoff time.Duration

	// Identity / schema sentinels
	ValidatorID string
	NetworkName string

	// Dashboard
	DashboardRowLimit int
}

// Load reads configuration from the environment, optionally first loading
// envFile (if non-empty) into the process environment. Values already set
// in the environment take precedence over the file (godotenv.Load does not
// override existing variables).
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	} else {
		// Best-effort: a .env file in the working directory, if any.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnvInt("PORT", 5500),

		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		DatabaseURL:       getEnv("DSN", ""),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),

		RPCURL: getEnv("RPC_URL", ""),

		BlocksChannel:      getEnv("BLOCKS_CHANNEL", ""),
		BlocksWebsocketURL: getEnv("BLOCKS_WEBSOCKET_URL", ""),
		WSReconnectBackoff: getEnvDuration("WS_RECONNECT_BACKOFF", 5*time.Second),

		ValidatorID: getEnv("VALIDATOR_ID", getEnv("NODE_ID", "")),
		NetworkName: getEnv("NETWORK_NAME", ""),

		DashboardRowLimit: getEnvInt("DASHBOARD_ROW_LIMIT", 500),
	}

	return cfg, nil
}

// Validate checks the invariants required at startup: DSN and RPC_URL
// are required, and the two block-event sources are mutually exclusive.
func (c *Config) Validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DSN is required but not set")
	}
	if c.RPCURL == "" {
		errs = append(errs, "RPC_URL is required but not set")
	}
	if c.BlocksChannel != "" && c.BlocksWebsocketURL != "" {
		errs = append(errs, "BLOCKS_CHANNEL and BLOCKS_WEBSOCKET_URL cannot both be set")
	}
	if c.ValidatorID == "" {
		errs = append(errs, "VALIDATOR_ID is required but not set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration invalid:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ListenAddr returns the host:port the HTTP server should bind.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
