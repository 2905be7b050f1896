package config

import (
	"os"
	"strconv"
	"time"

	"gocausal/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Engine   EngineConfig
	LogLevel string
}

// DatabaseConfig holds database connection settings. An empty URL selects
// the in-memory model repository.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port         string
	GinMode      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// EngineConfig holds identification engine settings
type EngineConfig struct {
	// MaxConcurrentQueries bounds batch impact evaluation
	MaxConcurrentQueries int
	// KeepLatentArcs is the default keepArcs flag for models built from definitions
	KeepLatentArcs bool
	// VerboseFormulas turns on AST evaluation tracing
	VerboseFormulas bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
			ConnMaxLifetime: getEnvDurationOrDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			Migrate:         getEnvBoolOrDefault("DB_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:         getEnvOrDefault("PORT", "8080"),
			GinMode:      getEnvOrDefault("GIN_MODE", "debug"),
			ReadTimeout:  getEnvDurationOrDefault("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDurationOrDefault("HTTP_WRITE_TIMEOUT", 60*time.Second),
		},
		Engine: EngineConfig{
			MaxConcurrentQueries: getEnvIntOrDefault("MAX_CONCURRENT_QUERIES", 4),
			KeepLatentArcs:       getEnvBoolOrDefault("KEEP_LATENT_ARCS", false),
			VerboseFormulas:      getEnvBoolOrDefault("VERBOSE_FORMULAS", false),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	if config.Engine.MaxConcurrentQueries < 1 {
		return errors.ConfigInvalid("MAX_CONCURRENT_QUERIES must be at least 1")
	}
	if config.Database.MaxOpenConns < 1 {
		return errors.ConfigInvalid("DB_MAX_OPEN_CONNS must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
