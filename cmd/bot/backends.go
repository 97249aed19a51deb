package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/studio-booking-bot/internal/cache"
	"github.com/Proton-105/studio-booking-bot/internal/database"
	"github.com/Proton-105/studio-booking-bot/internal/health"
	"github.com/Proton-105/studio-booking-bot/internal/idempotency"
	"github.com/Proton-105/studio-booking-bot/internal/lifecycle"
	"github.com/Proton-105/studio-booking-bot/internal/ratelimit"
	"github.com/Proton-105/studio-booking-bot/internal/state"
	"github.com/Proton-105/studio-booking-bot/internal/verification"
	"github.com/Proton-105/studio-booking-bot/pkg/config"
	"github.com/Proton-105/studio-booking-bot/pkg/redis"
)

const templateCachePrefix = "studio:templates"

// backends are the stores chosen by configuration: Redis and Postgres when enabled,
// process memory otherwise.
type backends struct {
	redis *redis.Client
	db    *sql.DB

	sessions      state.Storage
	cache         cache.Cache
	idempotency   idempotency.Store
	limiter       ratelimit.Limiter
	memoryLimiter *ratelimit.MemoryLimiter
	verifier      *verification.Service
}

func newBackends(ctx context.Context, cfg *config.Config, log *slog.Logger, shutdown *lifecycle.Shutdown, checker *health.Checker) (*backends, error) {
	b := &backends{memoryLimiter: ratelimit.NewMemoryLimiter()}

	if cfg.Redis.Enabled {
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		shutdown.Register("redis", func(context.Context) error { return client.Close() })
		checker.AddCheck("redis", health.NewRedisChecker(client))
		b.redis = client

		b.sessions = state.NewRedisStorage(client.Client, cfg.Session.TTL, log)
		b.cache = cache.NewRedisCache(redis.NewMetricsClient(client), templateCachePrefix)
		b.idempotency = idempotency.NewRedisStore(client.Client, log)
		b.limiter = ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(client.Client, log), b.memoryLimiter, log)
	} else {
		log.Warn("redis disabled: sessions, caches and limits live in process memory")
		b.sessions = state.NewMemoryStorage()
		b.cache = cache.NewMemoryCache()
		b.idempotency = idempotency.NewMemoryStore()
		b.limiter = b.memoryLimiter
	}

	if cfg.Database.Enabled {
		db, err := database.Open(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, err
		}
		shutdown.Register("postgres", func(context.Context) error { return db.Close() })
		checker.AddCheck("postgres", health.NewDBChecker(db))
		b.db = db

		if cfg.Database.Migrations {
			if err := database.NewMigrator(db, log).Apply(ctx); err != nil {
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			log.Info("database migrations applied")
		}
	}

	store, err := b.verificationStore(cfg.Verification.Store, log)
	if err != nil {
		return nil, err
	}
	b.verifier = verification.NewService(store, cfg.Verification.Required, log)

	return b, nil
}

func (b *backends) verificationStore(kind string, log *slog.Logger) (verification.Store, error) {
	switch kind {
	case "redis":
		if b.redis == nil {
			return nil, errors.New("verification store redis requires redis to be enabled")
		}
		return verification.NewRedisStore(b.redis.Client), nil
	case "postgres":
		if b.db == nil {
			return nil, errors.New("verification store postgres requires the database to be enabled")
		}
		return verification.NewPostgresStore(b.db, log), nil
	default:
		return verification.NewMemoryStore(), nil
	}
}

// redisClient returns the raw client used for cross-instance session locks, nil when
// Redis is disabled.
func (b *backends) redisClient() *goredis.Client {
	if b.redis == nil {
		return nil
	}
	return b.redis.Client
}
