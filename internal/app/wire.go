package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tempoledger/tempod/internal/balance"
	s3blob "github.com/tempoledger/tempod/internal/blob/s3"
	"github.com/tempoledger/tempod/internal/cache/redis"
	"github.com/tempoledger/tempod/internal/config"
	"github.com/tempoledger/tempod/internal/domain"
	"github.com/tempoledger/tempod/internal/hook"
	"github.com/tempoledger/tempod/internal/service"
	"github.com/tempoledger/tempod/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Persistence
	Store        domain.LedgerStore
	ArchiveStore domain.EventArchiveStore

	// Redis-backed coordination
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	Cache       domain.BalanceCache
	RateLimiter domain.RateLimiter

	// External policy hook
	Hook domain.PolicyHook

	// Core service
	Ledger *service.LedgerService

	// Archival; nil when S3 is disabled.
	Archiver *s3blob.Archiver

	// Liveness probes for the health endpoint.
	PG    *postgres.Client
	Redis *redis.Client
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
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	ledgerStore := postgres.NewLedgerStore(pgClient.Pool())
	deps.Store = ledgerStore
	deps.ArchiveStore = ledgerStore
	deps.PG = pgClient

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

	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.Cache = redis.NewBalanceCache(redisClient, cfg.Ledger.BalanceCacheTTL.Duration)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.Redis = redisClient

	// --- S3 blob storage (event archival) ---
	if cfg.S3.Enabled {
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
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), ledgerStore, logger)
	}

	// --- Policy hook client ---
	deps.Hook = hook.NewClient(cfg.Hooks.BaseURL, cfg.Hooks.Timeout.Duration, logger)

	// --- Ledger service ---
	engine := balance.NewEngine(cfg.Ledger.Decimals)
	deps.Ledger = service.NewLedgerService(
		deps.Store,
		deps.LockManager,
		deps.SignalBus,
		deps.Hook,
		deps.Cache,
		engine,
		cfg.Ledger.LockTTL.Duration,
		logger,
	)

	return deps, cleanup, nil
}
