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
// built-in defaults, applies ROLLEX_* environment variable overrides, and
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

// applyEnvOverrides reads well-known ROLLEX_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "ROLLEX_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "ROLLEX_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "ROLLEX_WALLET_KEY_PASSWORD")

	// ── Rollup ──
	setStr(&cfg.Rollup.Host, "ROLLEX_ROLLUP_HOST")
	setStr(&cfg.Rollup.WsHost, "ROLLEX_ROLLUP_WS_HOST")
	setStr(&cfg.Rollup.AdminKey, "ROLLEX_ROLLUP_ADMIN_KEY")

	// ── Matching ──
	setUint64(&cfg.Matching.Precision, "ROLLEX_MATCHING_PRECISION")
	setUint64(&cfg.Matching.Fee, "ROLLEX_MATCHING_FEE")
	setUint32(&cfg.Matching.FeeTokenIndex, "ROLLEX_MATCHING_FEE_TOKEN_INDEX")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ROLLEX_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ROLLEX_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ROLLEX_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ROLLEX_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ROLLEX_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ROLLEX_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ROLLEX_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ROLLEX_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ROLLEX_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ROLLEX_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ROLLEX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ROLLEX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ROLLEX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ROLLEX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ROLLEX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ROLLEX_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ROLLEX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ROLLEX_S3_REGION")
	setStr(&cfg.S3.Bucket, "ROLLEX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ROLLEX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ROLLEX_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ROLLEX_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ROLLEX_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "ROLLEX_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "ROLLEX_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "ROLLEX_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ROLLEX_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ROLLEX_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ROLLEX_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ROLLEX_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ROLLEX_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ROLLEX_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ROLLEX_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ROLLEX_MODE")
	setStr(&cfg.LogLevel, "ROLLEX_LOG_LEVEL")
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

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint32(dst *uint32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
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
