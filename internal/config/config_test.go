package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint8(9), cfg.Ledger.Decimals)
	assert.Equal(t, 10*time.Second, cfg.Ledger.LockTTL.Duration)
	assert.Equal(t, "full", cfg.Mode)
	assert.False(t, cfg.S3.Enabled)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
mode = "server"

[ledger]
decimals = 6
lock_ttl = "3s"

[redis]
addr = "redis.internal:6380"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, uint8(6), cfg.Ledger.Decimals)
	assert.Equal(t, 3*time.Second, cfg.Ledger.LockTTL.Duration)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	// Untouched sections keep their defaults.
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, 5*time.Second, cfg.Hooks.Timeout.Duration)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TEMPOD_POSTGRES_PASSWORD", "sekrit")
	t.Setenv("TEMPOD_SERVER_PORT", "9001")
	t.Setenv("TEMPOD_LEDGER_LOCK_TTL", "30s")
	t.Setenv("TEMPOD_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "sekrit", cfg.Postgres.Password)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Ledger.LockTTL.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "hybrid"
	cfg.Ledger.LockTTL.Duration = 0
	cfg.Postgres.Port = 0
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "hybrid"`)
	assert.Contains(t, err.Error(), "lock_ttl must be > 0")
	assert.Contains(t, err.Error(), "port must be 1-65535")
	assert.Contains(t, err.Error(), "redis: addr must not be empty")
}

func TestValidateS3RequiresArchiveSettings(t *testing.T) {
	cfg := Defaults()
	cfg.S3.Enabled = true
	cfg.S3.Bucket = ""
	cfg.Archive.RetentionDays = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: bucket must not be empty")
	assert.Contains(t, err.Error(), "retention_days must be >= 1")
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pg-secret"
	cfg.Redis.Password = "redis-secret"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Server.APIKey = "api-secret"

	red := RedactedConfig(&cfg)

	assert.NotContains(t, red.Postgres.Password, "pg-secret")
	assert.NotContains(t, red.Redis.Password, "redis-secret")
	assert.NotContains(t, red.S3.SecretKey, "s3-secret")
	assert.NotContains(t, red.Server.APIKey, "api-secret")
	// The original is untouched.
	assert.Equal(t, "pg-secret", cfg.Postgres.Password)
}
