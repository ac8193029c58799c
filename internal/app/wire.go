package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/zkxchange/rollexbot/internal/blob/s3"
	"github.com/zkxchange/rollexbot/internal/cache/redis"
	"github.com/zkxchange/rollexbot/internal/config"
	"github.com/zkxchange/rollexbot/internal/crypto"
	"github.com/zkxchange/rollexbot/internal/domain"
	"github.com/zkxchange/rollexbot/internal/notify"
	"github.com/zkxchange/rollexbot/internal/platform/rollup"
	"github.com/zkxchange/rollexbot/internal/store/postgres"
)

// Dependencies bundles every infrastructure dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Ledger access
	Rollup      *rollup.Client
	Signer      *crypto.Signer // player key; nil outside trading modes
	AdminSigner *crypto.Signer // settlement key; nil when not configured

	// Stores
	MarketStore domain.MarketStore
	OrderStore  domain.OrderStore
	TradeStore  domain.TradeStore

	// Caches
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsWallet returns true for modes that submit signed transactions.
func needsWallet(mode string) bool {
	switch mode {
	case "trade", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Signing keys ---
	if needsWallet(cfg.Mode) {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
		}
		deps.Signer, err = crypto.NewSigner(keyHex)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: wallet signer: %w", err)
		}
	}
	if cfg.Rollup.AdminKey != "" {
		admin, err := crypto.NewSigner(cfg.Rollup.AdminKey)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: admin signer: %w", err)
		}
		deps.AdminSigner = admin
	}

	// --- Rollup RPC client ---
	deps.Rollup = rollup.NewClient(cfg.Rollup.Host, logger)

	// The matching constants must agree with the deployed ledger; a mismatch
	// would make every cost computation and invariant check wrong. Nodes that
	// predate the config endpoint just log a warning.
	if lc, err := deps.Rollup.QueryConfig(ctx); err != nil {
		logger.Warn("could not verify ledger config", slog.String("error", err.Error()))
	} else if lc.Precision != cfg.Matching.Precision ||
		lc.Fee != cfg.Matching.Fee ||
		lc.FeeTokenIndex != cfg.Matching.FeeTokenIndex {
		return nil, nil, fmt.Errorf(
			"wire: matching config disagrees with ledger (node: precision=%d fee=%d fee_token=%d)",
			lc.Precision, lc.Fee, lc.FeeTokenIndex)
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.OrderStore = postgres.NewOrderStore(pool)
	deps.TradeStore = postgres.NewTradeStore(pool)

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

	deps.MarketCache = redis.NewMarketCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// --- S3 blob storage (only when archival is on) ---
	if cfg.Archive.Enabled {
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
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.TradeStore, deps.OrderStore)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
