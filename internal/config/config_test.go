package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"BREWLOG_CONFIG", "HTTP_ADDR", "DATABASE_URL", "JWT_SECRET", "DRAFT_STORE_PATH",
		"DRAFT_TTL", "AUTOSAVE_DELAY", "KAFKA_BROKERS", "KAFKA_TOPIC", "LOG_LEVEL",
		"LOG_DEV", "CORS_ALLOWED_ORIGINS", "CORS_ALLOW_CREDENTIALS", "WORKER_POLL_INTERVAL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/brewlog")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("AUTOSAVE_DELAY", "3s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3*time.Second, cfg.AutosaveDelay.Duration)
	assert.Equal(t, 24*time.Hour, cfg.DraftTTL.Duration)
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "brewlog.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url = "postgres://file/brewlog"
jwt_secret = "from-file"
draft_ttl = "12h"
http_addr = ":9000"
`), 0o644))

	t.Setenv("BREWLOG_CONFIG", path)
	t.Setenv("HTTP_ADDR", ":9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://file/brewlog", cfg.DatabaseURL)
	assert.Equal(t, 12*time.Hour, cfg.DraftTTL.Duration)
	assert.Equal(t, ":9100", cfg.HTTPAddr)
}

func TestLoadMissingRequired(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadBadDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("DRAFT_TTL", "a day")

	_, err := Load()
	assert.Error(t, err)
}
