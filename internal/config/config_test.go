package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("KV_BACKEND", "")
	t.Setenv("PENDING_EVENTS_MAX", "")
	cfg := Load()

	assert.Equal(t, BackendMemory, cfg.KVBackend)
	assert.Equal(t, 100, cfg.PendingEventsMax)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KV_BACKEND", "Redis")
	t.Setenv("PENDING_EVENTS_MAX", "25")
	t.Setenv("JWT_EXPIRY", "2h")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("APP_ENV", "production")
	cfg := Load()

	assert.Equal(t, BackendRedis, cfg.KVBackend)
	assert.Equal(t, 25, cfg.PendingEventsMax)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_BadNumbersFallBack(t *testing.T) {
	t.Setenv("PENDING_EVENTS_MAX", "lots")
	t.Setenv("JWT_EXPIRY", "forever")
	cfg := Load()

	assert.Equal(t, 100, cfg.PendingEventsMax)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpiry)
}
