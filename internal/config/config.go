package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// MinBcryptCost is the lowest hashing cost the service accepts.
const MinBcryptCost = 12

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode     string // Set by the CLI command, not env
	Environment string

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Auth
	JwtSecret  string
	JwtTTL     time.Duration
	BcryptCost int

	// Server
	ApiPort           string
	ServiceApiPort    string
	CorsAllowedOrigin string
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	ShutdownTimeout   time.Duration

	// Marketplace
	DefaultPageSize int
	MaxPageSize     int
	StatsCacheTTL   time.Duration

	// Notifications
	MockServices         bool
	LogNotificationsPath string
	NotifyFrom           string

	// Rate Limiting
	RateLimitBucketSize int
	RateLimitRefillRate int // tokens per second
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from the CLI command.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getSeconds := func(key, defaultValue string) (time.Duration, error) {
		seconds, err := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		if seconds <= 0 {
			return 0, fmt.Errorf("invalid %s: must be positive", key)
		}
		return time.Duration(seconds) * time.Second, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.Environment = getEnv("APP_ENV", "development")
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "agriconnect")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.ApiPort = getEnv("API_PORT", "5000")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "5001")
	cfg.CorsAllowedOrigin = getEnv("CORS_ALLOWED_ORIGIN", "*")
	cfg.LogNotificationsPath = getEnv("LOG_NOTIFICATIONS", "")
	cfg.NotifyFrom = getEnv("NOTIFY_FROM", "Agri-connect")
	cfg.MockServices = getEnv("MOCK_SERVICES", "false") == "true"

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	// 30 days
	if cfg.JwtTTL, err = getSeconds("JWT_TTL_SECONDS", "2592000"); err != nil {
		return nil, err
	}

	cfg.BcryptCost, err = strconv.Atoi(getEnv("BCRYPT_COST", strconv.Itoa(MinBcryptCost)))
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}
	if cfg.BcryptCost < MinBcryptCost {
		return nil, fmt.Errorf("invalid BCRYPT_COST: must be at least %d", MinBcryptCost)
	}

	if cfg.HTTPReadTimeout, err = getSeconds("HTTP_READ_TIMEOUT_SECONDS", "15"); err != nil {
		return nil, err
	}
	if cfg.HTTPWriteTimeout, err = getSeconds("HTTP_WRITE_TIMEOUT_SECONDS", "30"); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getSeconds("SHUTDOWN_TIMEOUT_SECONDS", "15"); err != nil {
		return nil, err
	}
	if cfg.StatsCacheTTL, err = getSeconds("STATS_CACHE_TTL_SECONDS", "60"); err != nil {
		return nil, err
	}

	cfg.DefaultPageSize, err = strconv.Atoi(getEnv("DEFAULT_PAGE_SIZE", "12"))
	if err != nil || cfg.DefaultPageSize < 1 {
		return nil, fmt.Errorf("invalid DEFAULT_PAGE_SIZE: %q", getEnv("DEFAULT_PAGE_SIZE", ""))
	}
	cfg.MaxPageSize, err = strconv.Atoi(getEnv("MAX_PAGE_SIZE", "100"))
	if err != nil || cfg.MaxPageSize < cfg.DefaultPageSize {
		return nil, fmt.Errorf("invalid MAX_PAGE_SIZE: %q", getEnv("MAX_PAGE_SIZE", ""))
	}

	cfg.RateLimitBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_BUCKET_SIZE", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_REFILL_RATE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: %w", err)
	}

	return cfg, nil
}
