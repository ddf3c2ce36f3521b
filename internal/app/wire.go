package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/polyrank/internal/blob/s3"
	"github.com/alanyoungcy/polyrank/internal/cache/redis"
	"github.com/alanyoungcy/polyrank/internal/config"
	"github.com/alanyoungcy/polyrank/internal/crypto"
	"github.com/alanyoungcy/polyrank/internal/domain"
	"github.com/alanyoungcy/polyrank/internal/ingest"
	"github.com/alanyoungcy/polyrank/internal/notify"
	"github.com/alanyoungcy/polyrank/internal/platform/polymarket"
	"github.com/alanyoungcy/polyrank/internal/pnl"
	"github.com/alanyoungcy/polyrank/internal/store/postgres"
)

// Dependencies bundles the concrete infrastructure the long-running modes
// share. It is constructed by Wire and torn down by the returned cleanup.
type Dependencies struct {
	Postgres *postgres.Client
	Redis    *redis.Client
	S3       *s3blob.Client

	// Stores
	Traders   domain.TraderStore
	Snapshots domain.SnapshotStore
	Audit     domain.AuditStore

	// Caches
	Results     domain.ResultCache
	Prices      domain.PriceCache
	RateLimiter domain.RateLimiter
	Locks       domain.LockManager
	Bus         domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.SnapshotArchiver

	Notifier *notify.Notifier
}

// Wire connects Postgres, Redis and S3 and builds the stores, caches and
// archiver on top of them. Any connection failure aborts startup.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Supabase.DSN,
		Host:     cfg.Supabase.Host,
		Port:     cfg.Supabase.Port,
		Database: cfg.Supabase.Database,
		User:     cfg.Supabase.User,
		Password: cfg.Supabase.Password,
		SSLMode:  cfg.Supabase.SSLMode,
		MaxConns: cfg.Supabase.PoolMaxConns,
		MinConns: cfg.Supabase.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Supabase.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Postgres = pgClient
	deps.Traders = postgres.NewTraderStore(pool)
	snapshots := postgres.NewSnapshotStore(pool)
	deps.Snapshots = snapshots
	deps.Audit = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Redis = redisClient
	deps.Results = redis.NewResultCache(redisClient)
	deps.Prices = redis.NewPriceCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)
	deps.Bus = redis.NewSignalBus(redisClient)

	// --- S3 ---
	s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       cfg.S3.Endpoint,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		UseSSL:         cfg.S3.UseSSL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: s3: %w", err)
	}

	deps.S3 = s3Client
	writer := s3blob.NewWriter(s3Client)
	reader := s3blob.NewReader(s3Client)
	deps.BlobWriter = writer
	deps.BlobReader = reader
	deps.Archiver = s3blob.NewArchiver(writer, reader, snapshots, deps.Audit, s3blob.DefaultArchiveBatch, logger)

	deps.Notifier = buildNotifier(cfg.Notify, logger)

	return deps, cleanup, nil
}

func buildNotifier(cfg config.NotifyConfig, logger *slog.Logger) *notify.Notifier {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return notify.NewNotifier(senders, cfg.Events, logger)
}

// newEngine builds the data client, ingester and engine chain. It needs no
// storage, which keeps compute mode dependency free.
func newEngine(cfg *config.Config, logger *slog.Logger) *pnl.Engine {
	client := polymarket.NewDataClient(cfg.Polymarket.DataAPIHost, cfg.Polymarket.HTTPTimeout.Duration)
	ingester := ingest.NewIngester(client, ingest.Options{
		PageSize:   cfg.Polymarket.PageSize,
		MaxRecords: cfg.Polymarket.MaxRecords,
		Delay:      cfg.Polymarket.RequestDelay.Duration,
	}, logger)
	return pnl.NewEngine(ingester, logger)
}

// pingFunc adapts a health check with a different method name.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// adminPasswordHash returns the configured admin digest. A plaintext
// admin_password is hashed once at startup so login only ever compares
// PBKDF2 output.
func adminPasswordHash(cfg config.ServerConfig) (string, error) {
	if cfg.AdminPasswordHash != "" {
		if _, _, _, err := crypto.ParsePasswordHash(cfg.AdminPasswordHash); err != nil {
			return "", fmt.Errorf("app: admin_password_hash: %w", err)
		}
		return cfg.AdminPasswordHash, nil
	}
	if cfg.AdminPassword == "" {
		return "", nil
	}
	hash, err := crypto.HashPassword(cfg.AdminPassword)
	if err != nil {
		return "", fmt.Errorf("app: hash admin password: %w", err)
	}
	return hash, nil
}
