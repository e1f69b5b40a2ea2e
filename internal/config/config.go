// Package config loads timetree configuration from the environment
package config

import (
	"os"
)

// Config holds all server configuration
type Config struct {
	Port        string
	MetricsPort string
	Environment string
	DBPath      string
	CORSOrigins string
	LogLevel    string
	LogPretty   bool
}

// Load reads configuration from environment variables with defaults
func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		MetricsPort: getEnv("METRICS_PORT", "9090"),
		Environment: env,
		DBPath:      getEnv("DB_PATH", "timetree.db"),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		LogLevel:    getEnv("LOG_LEVEL", defaultLogLevel(env)),
		LogPretty:   getEnv("LOG_PRETTY", defaultPretty(env)) == "true",
	}
}

// defaultLogLevel returns the default log level based on environment
func defaultLogLevel(env string) string {
	if env == "prod" {
		return "info"
	}
	return "debug"
}

// defaultPretty returns the default pretty-print setting based on environment
func defaultPretty(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
