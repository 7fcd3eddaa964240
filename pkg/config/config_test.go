package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := LoadFromEnv()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 1337, cfg.Server.Port)
	assert.Equal(t, int64(0), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "./uploads", cfg.Storage.LocalPath)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.TTL)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("STORAGE_LOCAL_PATH", "/var/lib/hashdrop")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := LoadFromEnv()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(1048576), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "/var/lib/hashdrop", cfg.Storage.LocalPath)
	assert.Equal(t, 5*time.Minute, cfg.Sessions.TTL)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	t.Setenv("SESSION_TTL", "soon")
	t.Setenv("DB_ENABLED", "maybe")

	cfg := LoadFromEnv()

	assert.Equal(t, 1337, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.TTL)
	assert.False(t, cfg.Database.Enabled)
}
