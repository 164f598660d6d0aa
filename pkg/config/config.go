package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	ERAPI     ERAPIConfig
	Sync      SyncConfig
	OTEL      OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host        string
	Port        int
	Environment string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// ERAPIConfig holds settings for the government ER information API
type ERAPIConfig struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration
	Workers    int
	RetryCount int
}

// SyncConfig holds ingestion cycle settings
type SyncConfig struct {
	Interval         time.Duration
	AdvisoryLockKey  int64
	BasicInfoTTL     time.Duration
	RegionIndexTTL   time.Duration
	MessageBatchSize int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real env vars win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			Environment: getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "erboard"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		ERAPI: ERAPIConfig{
			BaseURL:    getEnv("ER_API_BASE_URL", "https://apis.data.go.kr/B552657/ErmctInfoInqireService"),
			ServiceKey: getEnv("ER_API_SERVICE_KEY", ""),
			Timeout:    getEnvAsDuration("ER_API_TIMEOUT", 10*time.Second),
			Workers:    getEnvAsInt("ER_API_WORKERS", 8),
			RetryCount: getEnvAsInt("ER_API_RETRY_COUNT", 1),
		},
		Sync: SyncConfig{
			Interval:         getEnvAsDuration("SYNC_INTERVAL", 0),
			AdvisoryLockKey:  int64(getEnvAsInt("SYNC_LOCK_KEY", 72104)),
			BasicInfoTTL:     getEnvAsDuration("SYNC_BASIC_INFO_TTL", 24*time.Hour),
			RegionIndexTTL:   getEnvAsDuration("REGION_INDEX_TTL", 6*time.Hour),
			MessageBatchSize: getEnvAsInt("SYNC_MESSAGE_ROWS", 50),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "erboard"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks the settings needed before calling the upstream API.
func (c *ERAPIConfig) Validate() error {
	if c.ServiceKey == "" {
		return errors.New("ER_API_SERVICE_KEY is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("ER_API_WORKERS must be positive, got %d", c.Workers)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
