package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path (skipped when path is empty),
// merges it on top of the built-in defaults, applies POLYRANK_* environment
// variable overrides, and returns the final Config. The returned Config has
// NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYRANK_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.DataAPIHost, "POLYRANK_POLYMARKET_DATA_API_HOST")
	setInt(&cfg.Polymarket.PageSize, "POLYRANK_POLYMARKET_PAGE_SIZE")
	setInt(&cfg.Polymarket.MaxRecords, "POLYRANK_POLYMARKET_MAX_RECORDS")
	setDuration(&cfg.Polymarket.RequestDelay, "POLYRANK_POLYMARKET_REQUEST_DELAY")
	setDuration(&cfg.Polymarket.HTTPTimeout, "POLYRANK_POLYMARKET_HTTP_TIMEOUT")

	// ── Pricing ──
	setStr(&cfg.Pricing.CoinGeckoURL, "POLYRANK_PRICING_COINGECKO_URL")
	setStr(&cfg.Pricing.CoinbaseURL, "POLYRANK_PRICING_COINBASE_URL")
	setDuration(&cfg.Pricing.CacheTTL, "POLYRANK_PRICING_CACHE_TTL")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "POLYRANK_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "POLYRANK_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "POLYRANK_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "POLYRANK_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "POLYRANK_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "POLYRANK_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "POLYRANK_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "POLYRANK_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "POLYRANK_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "POLYRANK_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYRANK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYRANK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYRANK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYRANK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYRANK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYRANK_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "POLYRANK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYRANK_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYRANK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYRANK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYRANK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYRANK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYRANK_S3_FORCE_PATH_STYLE")

	// ── Refresh ──
	setBool(&cfg.Refresh.Enabled, "POLYRANK_REFRESH_ENABLED")
	setDuration(&cfg.Refresh.Interval, "POLYRANK_REFRESH_INTERVAL")
	setDuration(&cfg.Refresh.ResultTTL, "POLYRANK_REFRESH_RESULT_TTL")
	setDuration(&cfg.Refresh.LockTTL, "POLYRANK_REFRESH_LOCK_TTL")
	setInt(&cfg.Refresh.ArchiveRetentionDays, "POLYRANK_REFRESH_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Refresh.ArchiveCron, "POLYRANK_REFRESH_ARCHIVE_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POLYRANK_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POLYRANK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYRANK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "POLYRANK_SERVER_API_KEY")
	setStr(&cfg.Server.AdminPasswordHash, "POLYRANK_SERVER_ADMIN_PASSWORD_HASH")
	setStr(&cfg.Server.AdminPassword, "POLYRANK_SERVER_ADMIN_PASSWORD")
	setStr(&cfg.Server.AdminPassword, "ADMIN_PASSWORD") // compatibility alias
	setInt(&cfg.Server.RateLimitPerMinute, "POLYRANK_SERVER_RATE_LIMIT_PER_MINUTE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYRANK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYRANK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYRANK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYRANK_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYRANK_MODE")
	setStr(&cfg.LogLevel, "POLYRANK_LOG_LEVEL")
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
