package config

import (
	"os"
	"strconv"
	"time"

	"automl/domain/search"
	"automl/internal/errors"
)

// Config represents the process configuration read from the environment
type Config struct {
	Tracking      TrackingConfig
	Registry      RegistryConfig
	Server        ServerConfig
	Observability ObservabilityConfig
}

// TrackingConfig holds run-log and artifact storage settings
type TrackingConfig struct {
	Driver       string
	DSN          string
	ArtifactRoot string
}

// RegistryConfig selects where production pointers live
type RegistryConfig struct {
	Backend   string
	RedisAddr string
	RedisDB   int
	ModelName string
}

// ServerConfig holds HTTP settings for the serving and tracking APIs
type ServerConfig struct {
	Port            string
	TrackingPort    string
	GinMode         string
	ShutdownTimeout time.Duration
}

// ObservabilityConfig holds tracing and logging switches
type ObservabilityConfig struct {
	LogLevel       string
	ConsoleTracing bool
	ServiceName    string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Tracking:      loadTrackingConfig(),
		Registry:      loadRegistryConfig(),
		Server:        loadServerConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadTrackingConfig() TrackingConfig {
	driver := getEnvOrDefault("TRACKING_DRIVER", "sqlite3")
	dsn := os.Getenv("TRACKING_DSN")
	if dsn == "" {
		if driver == "postgres" {
			dsn = os.Getenv("DATABASE_URL")
		} else {
			dsn = "file:mlruns.db?_foreign_keys=on"
		}
	}
	return TrackingConfig{
		Driver:       driver,
		DSN:          dsn,
		ArtifactRoot: getEnvOrDefault("ARTIFACT_ROOT", "./mlartifacts"),
	}
}

func loadRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Backend:   getEnvOrDefault("REGISTRY_BACKEND", "sql"),
		RedisAddr: getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getEnvIntOrDefault("REDIS_DB", 0),
		ModelName: getEnvOrDefault("REGISTERED_MODEL_NAME", search.DefaultRegisteredName),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:            getEnvOrDefault("PORT", "8080"),
		TrackingPort:    getEnvOrDefault("TRACKING_PORT", "5000"),
		GinMode:         getEnvOrDefault("GIN_MODE", "release"),
		ShutdownTimeout: getEnvDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "INFO"),
		ConsoleTracing: getEnvBoolOrDefault("OTEL_CONSOLE", false),
		ServiceName:    getEnvOrDefault("OTEL_SERVICE_NAME", "automl"),
	}
}

func validateConfig(config *Config) error {
	switch config.Tracking.Driver {
	case "sqlite3", "postgres":
	default:
		return errors.ConfigInvalid("TRACKING_DRIVER must be sqlite3 or postgres, got " + config.Tracking.Driver)
	}
	if config.Tracking.DSN == "" {
		return errors.ConfigInvalid("TRACKING_DSN (or DATABASE_URL) is required for postgres tracking")
	}
	switch config.Registry.Backend {
	case "sql", "redis":
	default:
		return errors.ConfigInvalid("REGISTRY_BACKEND must be sql or redis, got " + config.Registry.Backend)
	}
	if config.Registry.ModelName == "" {
		return errors.ConfigInvalid("REGISTERED_MODEL_NAME must not be empty")
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
