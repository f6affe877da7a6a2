package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TEMPOD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TEMPOD_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Ledger ──
	setUint8(&cfg.Ledger.Decimals, "TEMPOD_LEDGER_DECIMALS")
	setDuration(&cfg.Ledger.LockTTL, "TEMPOD_LEDGER_LOCK_TTL")
	setDuration(&cfg.Ledger.BalanceCacheTTL, "TEMPOD_LEDGER_BALANCE_CACHE_TTL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "TEMPOD_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TEMPOD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TEMPOD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TEMPOD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TEMPOD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TEMPOD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TEMPOD_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TEMPOD_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TEMPOD_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TEMPOD_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TEMPOD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TEMPOD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TEMPOD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TEMPOD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TEMPOD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TEMPOD_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TEMPOD_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TEMPOD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TEMPOD_S3_REGION")
	setStr(&cfg.S3.Bucket, "TEMPOD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TEMPOD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TEMPOD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TEMPOD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TEMPOD_S3_FORCE_PATH_STYLE")

	// ── Hooks ──
	setStr(&cfg.Hooks.BaseURL, "TEMPOD_HOOKS_BASE_URL")
	setDuration(&cfg.Hooks.Timeout, "TEMPOD_HOOKS_TIMEOUT")

	// ── Archive ──
	setInt(&cfg.Archive.RetentionDays, "TEMPOD_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "TEMPOD_ARCHIVE_INTERVAL")
	setBool(&cfg.Archive.Prune, "TEMPOD_ARCHIVE_PRUNE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TEMPOD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TEMPOD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TEMPOD_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TEMPOD_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "TEMPOD_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "TEMPOD_SERVER_RATE_WINDOW")

	// ── Top-level ──
	setStr(&cfg.Mode, "TEMPOD_MODE")
	setStr(&cfg.LogLevel, "TEMPOD_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint8(dst *uint8, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 8); err == nil {
			*dst = uint8(n)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
