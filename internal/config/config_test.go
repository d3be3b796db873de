package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "http://localhost:8080", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.TracingEnabled)
	assert.Equal(t, "8080", cfg.DevServerPort)
	assert.Equal(t, 60, cfg.RateLimitRequests)
	assert.NotEmpty(t, cfg.StatePath)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ADVISORY_API_URL", "https://api.lumen.example")
	t.Setenv("ADVISORY_REQUEST_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("RATE_LIMIT_REQUESTS", "10")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")

	cfg := Load()
	assert.Equal(t, "https://api.lumen.example", cfg.APIBaseURL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, 10, cfg.RateLimitRequests)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ADVISORY_REQUEST_TIMEOUT", "not-a-duration")
	t.Setenv("RATE_LIMIT_REQUESTS", "many")
	t.Setenv("TRACING_ENABLED", "maybe")

	cfg := Load()
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 60, cfg.RateLimitRequests)
	assert.False(t, cfg.TracingEnabled)
}
