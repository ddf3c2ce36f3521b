// Package config defines the top-level configuration for the polyrank
// leaderboard backend and provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYRANK_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Pricing    PricingConfig    `toml:"pricing"`
	Supabase   SupabaseConfig   `toml:"supabase"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Refresh    RefreshConfig    `toml:"refresh"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds the data API endpoint and the ingestion budget.
type PolymarketConfig struct {
	DataAPIHost string `toml:"data_api_host"`
	// PageSize is the number of activity records requested per page.
	PageSize int `toml:"page_size"`
	// MaxRecords stops paging once the cumulative fetched count exceeds it.
	MaxRecords   int      `toml:"max_records"`
	RequestDelay duration `toml:"request_delay"`
	HTTPTimeout  duration `toml:"http_timeout"`
}

// PricingConfig holds the POL quote sources.
type PricingConfig struct {
	CoinGeckoURL string   `toml:"coingecko_url"`
	CoinbaseURL  string   `toml:"coinbase_url"`
	CacheTTL     duration `toml:"cache_ttl"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// RefreshConfig controls the periodic leaderboard recomputation and the
// snapshot archive.
type RefreshConfig struct {
	Enabled              bool     `toml:"enabled"`
	Interval             duration `toml:"interval"`
	ResultTTL            duration `toml:"result_ttl"`
	LockTTL              duration `toml:"lock_ttl"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
	ArchiveCron          string   `toml:"archive_cron"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey guards the mutating trader endpoints. Empty disables auth.
	APIKey string `toml:"api_key"`
	// AdminPasswordHash is a "pbkdf2-sha256$..." digest (see polyrank
	// -hash-password). It wins over the plaintext AdminPassword.
	AdminPasswordHash string `toml:"admin_password_hash"`
	AdminPassword     string `toml:"admin_password"`
	// RateLimitPerMinute is the per-client request budget; 0 disables it.
	RateLimitPerMinute int `toml:"rate_limit_per_minute"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			DataAPIHost:  "https://data-api.polymarket.com",
			PageSize:     500,
			MaxRecords:   5000,
			RequestDelay: duration{time.Second},
			HTTPTimeout:  duration{15 * time.Second},
		},
		Pricing: PricingConfig{
			CoinGeckoURL: "https://api.coingecko.com/api/v3",
			CoinbaseURL:  "https://api.coinbase.com/v2",
			CacheTTL:     duration{time.Minute},
		},
		Supabase: SupabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polyrank-data",
			ForcePathStyle: true,
		},
		Refresh: RefreshConfig{
			Enabled:              true,
			Interval:             duration{15 * time.Minute},
			ResultTTL:            duration{5 * time.Minute},
			LockTTL:              duration{30 * time.Minute},
			ArchiveRetentionDays: 90,
			ArchiveCron:          "0 3 1 * *",
		},
		Server: ServerConfig{
			Enabled:            true,
			Port:               8000,
			CORSOrigins:        []string{"http://localhost:3000"},
			RateLimitPerMinute: 120,
		},
		Notify: NotifyConfig{
			Events: []string{"refresh_failed", "wallet_failed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"refresh": true,
	"full":    true,
	"compute": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// NeedsStorage reports whether the configured mode talks to Postgres, Redis
// and S3. The one-shot compute mode only needs the data API.
func (c *Config) NeedsStorage() bool {
	return strings.ToLower(c.Mode) != "compute"
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, refresh, full, compute)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Polymarket
	if u, err := url.Parse(c.Polymarket.DataAPIHost); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("polymarket: data_api_host must be an absolute URL, got %q", c.Polymarket.DataAPIHost))
	}
	if c.Polymarket.PageSize < 1 {
		errs = append(errs, "polymarket: page_size must be >= 1")
	}
	if c.Polymarket.MaxRecords < c.Polymarket.PageSize {
		errs = append(errs, "polymarket: max_records must be >= page_size")
	}
	if c.Polymarket.RequestDelay.Duration < 0 {
		errs = append(errs, "polymarket: request_delay must not be negative")
	}
	if c.Polymarket.HTTPTimeout.Duration <= 0 {
		errs = append(errs, "polymarket: http_timeout must be > 0")
	}

	if c.Pricing.CoinGeckoURL == "" && c.Pricing.CoinbaseURL == "" {
		errs = append(errs, "pricing: at least one of coingecko_url or coinbase_url must be set")
	}

	if c.NeedsStorage() {
		// Supabase
		if strings.TrimSpace(c.Supabase.DSN) == "" {
			if c.Supabase.Host == "" {
				errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
			}
			if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
				errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
			}
			if c.Supabase.Database == "" {
				errs = append(errs, "supabase: database must not be empty")
			}
		}
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns < 0 || c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must be between 0 and pool_max_conns")
		}

		// Redis
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}

		// S3
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Refresh
	if c.Refresh.Enabled {
		if c.Refresh.Interval.Duration < time.Minute {
			errs = append(errs, "refresh: interval must be at least 1m")
		}
		if c.Refresh.ArchiveRetentionDays < 1 {
			errs = append(errs, "refresh: archive_retention_days must be >= 1")
		}
		if len(strings.Fields(c.Refresh.ArchiveCron)) != 5 {
			errs = append(errs, fmt.Sprintf("refresh: archive_cron must have 5 fields, got %q", c.Refresh.ArchiveCron))
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.AdminPasswordHash != "" && !strings.HasPrefix(c.Server.AdminPasswordHash, "pbkdf2-sha256$") {
			errs = append(errs, "server: admin_password_hash must be a pbkdf2-sha256 digest")
		}
		if c.Server.RateLimitPerMinute < 0 {
			errs = append(errs, "server: rate_limit_per_minute must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
