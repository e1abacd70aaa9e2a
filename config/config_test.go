package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("JWT_SECRET", "  s3cret  ")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "minio", cfg.Storage.Backend)
	assert.Equal(t, 15*time.Minute, cfg.Storage.PresignExpires)
	assert.Equal(t, "none", cfg.MQ.Backend)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("JWT_EXPIRES", "1d")
	t.Setenv("STORAGE_PRESIGN_EXPIRES", "600")
	t.Setenv("STORAGE_BACKEND", "GCS")
	t.Setenv("PUBLIC_BASE_URL", "https://api.example.com/")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.Storage.PresignExpires)
	assert.Equal(t, "gcs", cfg.Storage.Backend)
	assert.Equal(t, "https://api.example.com", cfg.PublicBaseURL)
}

func TestGetEnvDurationFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_DURATION", "soon")
	assert.Equal(t, time.Minute, getEnvDuration("SOME_DURATION", time.Minute))
}
