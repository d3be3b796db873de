// Package config provides environment configuration for the chat client.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all configuration for the client and the dev server.
type Config struct {
	// API settings
	APIBaseURL     string
	RequestTimeout time.Duration

	// Local state
	StatePath string

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool

	// Dev server settings
	DevServerPort     string
	DevJWTSecret      string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// API
		APIBaseURL:     getEnv("ADVISORY_API_URL", "http://localhost:8080"),
		RequestTimeout: getDurationEnv("ADVISORY_REQUEST_TIMEOUT", 30*time.Second),

		// Local state
		StatePath: getEnv("ADVISORY_STATE_PATH", defaultStatePath()),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),

		// Dev server
		DevServerPort:     getEnv("DEV_SERVER_PORT", "8080"),
		DevJWTSecret:      getEnv("DEV_JWT_SECRET", "development-secret-change-in-production"),
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
	}
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "advisory-chat.db"
	}
	return filepath.Join(home, ".advisory-chat", "state.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
