package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Credential source kind constants
const (
	SourceMemory = "memory"
	SourceLocal  = "local"
	SourceSQL    = "sql"
)

// Rate limit store constants
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

type Config struct {
	// Server settings
	ServerAddr   string
	IsProduction bool

	// Application context used for per-application authorization
	AppID string

	// Credential source
	SourceKind           string // "memory", "local" or "sql"
	CredentialsFile      string // YAML table for the memory source
	LocalStorePath       string // encrypted vault path for the local source
	LocalStorePassphrase string
	LocalStoreTable      string // vault table name (default: credentials)
	SQLConfigPath        string // YAML descriptor for the sql source

	// Admin surface (disabled when token is empty)
	AdminToken string

	// Metrics
	MetricsEnabled bool
	MetricsToken   string

	// Rate limiting
	EnableRateLimit          bool
	CheckRateLimit           int // requests per minute on /auth/check
	RateLimitStore           string
	RateLimitCleanupInterval time.Duration

	// Redis (only used when RateLimitStore = "redis")
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		IsProduction: getEnv("ENV", "development") == "production",

		AppID: getEnv("APP_ID", ""),

		SourceKind:           getEnv("SOURCE_KIND", SourceMemory),
		CredentialsFile:      getEnv("CREDENTIALS_FILE", "credentials.yaml"),
		LocalStorePath:       getEnv("LOCAL_STORE_PATH", ""),
		LocalStorePassphrase: getEnv("LOCAL_STORE_PASSPHRASE", ""),
		LocalStoreTable:      getEnv("LOCAL_STORE_TABLE", "credentials"),
		SQLConfigPath:        getEnv("SQL_CONFIG_PATH", ""),

		AdminToken: getEnv("ADMIN_TOKEN", ""),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		MetricsToken:   getEnv("METRICS_TOKEN", ""),

		EnableRateLimit:          getEnvBool("ENABLE_RATE_LIMIT", true),
		CheckRateLimit:           getEnvInt("CHECK_RATE_LIMIT", 60),
		RateLimitStore:           getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
	}
}

// Validate checks that the configuration is coherent for the selected
// source kind before anything is resolved.
func (c *Config) Validate() error {
	switch c.SourceKind {
	case SourceMemory:
		if c.CredentialsFile == "" {
			return fmt.Errorf("CREDENTIALS_FILE is required when SOURCE_KIND=%s", SourceMemory)
		}
	case SourceLocal:
		if c.LocalStorePath == "" {
			return fmt.Errorf("LOCAL_STORE_PATH is required when SOURCE_KIND=%s", SourceLocal)
		}
		if c.LocalStorePassphrase == "" {
			return fmt.Errorf("LOCAL_STORE_PASSPHRASE is required when SOURCE_KIND=%s", SourceLocal)
		}
	case SourceSQL:
		if c.SQLConfigPath == "" {
			return fmt.Errorf("SQL_CONFIG_PATH is required when SOURCE_KIND=%s", SourceSQL)
		}
	default:
		return fmt.Errorf("invalid SOURCE_KIND: %s (must be: memory, local, sql)", c.SourceKind)
	}

	switch c.RateLimitStore {
	case RateLimitStoreMemory, RateLimitStoreRedis:
	default:
		return fmt.Errorf("invalid RATE_LIMIT_STORE: %s (must be: memory, redis)", c.RateLimitStore)
	}

	if c.EnableRateLimit && c.CheckRateLimit <= 0 {
		return fmt.Errorf("CHECK_RATE_LIMIT must be positive, got %d", c.CheckRateLimit)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
