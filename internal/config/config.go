// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 3300).
	Port int

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// Mongo holds primary store connection settings.
	Mongo MongoConfig

	// Redis holds cache store connection settings.
	Redis RedisConfig

	// Auth holds authentication-related settings.
	Auth AuthConfig

	// Game holds the settings handed to connecting game clients.
	Game GameConfig
}

// MongoConfig holds MongoDB connection parameters.
type MongoConfig struct {
	// URL is the MongoDB connection URL (e.g., "mongodb://localhost:27017").
	URL string

	// Database is the database name holding the users collection.
	Database string

	// ConnectTimeout bounds the initial connect-and-ping at startup.
	ConnectTimeout time.Duration
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// HashSecret keys the HMAC used for password digests. Changing it
	// invalidates every stored credential, so it must stay stable across
	// deploys.
	HashSecret string

	// SharedSecret is distributed out-of-band to the game server so it can
	// verify derived game tokens without reaching our stores.
	SharedSecret string

	// SessionTTL is how long a login session lasts before expiring.
	// Absolute, not sliding (default: 10 minutes).
	SessionTTL time.Duration
}

// GameConfig holds game server hand-off settings.
type GameConfig struct {
	// ServerAddr is the host:port clients are told to connect to.
	ServerAddr string
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if required variables are missing in production.
func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 3300),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		Mongo: MongoConfig{
			URL:            getEnv("MONGO_URL", "mongodb://localhost:27017"),
			Database:       getEnv("MONGO_DB", "accounts"),
			ConnectTimeout: getEnvDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Auth: AuthConfig{
			HashSecret:   getEnv("HASH_SECRET", ""),
			SharedSecret: getEnv("SHARED_SECRET", ""),
			SessionTTL:   getEnvDuration("SESSION_TTL", 10*time.Minute),
		},

		Game: GameConfig{
			ServerAddr: getEnv("GAME_SERVER_ADDR", "localhost:8008"),
		},
	}

	// Secrets must be set for real deployments. Case-insensitive check
	// catches common variants like "Production", "prod", etc.
	envLower := strings.ToLower(cfg.Env)
	if envLower == "production" || envLower == "prod" {
		if cfg.Auth.HashSecret == "" {
			return nil, fmt.Errorf("HASH_SECRET is required in production")
		}
		if cfg.Auth.SharedSecret == "" {
			return nil, fmt.Errorf("SHARED_SECRET is required in production")
		}
	}

	// Provide dev-only defaults so local dev works without a .env file.
	if cfg.Auth.HashSecret == "" {
		cfg.Auth.HashSecret = "dev-hash-secret-do-not-use-in-production"
	}
	if cfg.Auth.SharedSecret == "" {
		cfg.Auth.SharedSecret = "dev-shared-secret-do-not-use-in-production"
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "10m") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
