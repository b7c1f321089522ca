package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/rewe-discounts/internal/cache"
	"github.com/maltedev/rewe-discounts/internal/config"
	"github.com/maltedev/rewe-discounts/internal/database"
	"github.com/maltedev/rewe-discounts/internal/rewe"
)

func configPathFromEnv() string {
	return os.Getenv(config.ConfigFileEnv)
}

func (a *app) redisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     a.cfg.Cache.RedisAddr,
		Password: a.cfg.Cache.RedisPassword,
		DB:       a.cfg.Cache.RedisDB,
	})
}

// newClient builds the REWE client. The returned cleanup closes the redis
// connection when response caching is enabled.
func (a *app) newClient(ctx context.Context) (*rewe.Client, func()) {
	opts := rewe.Options{
		MobileBaseURL:     a.cfg.API.MobileBaseURL,
		ShopBaseURL:       a.cfg.API.ShopBaseURL,
		UserAgent:         a.cfg.Scraper.UserAgent,
		Timeout:           a.cfg.API.Timeout,
		RequestsPerSecond: a.cfg.API.RequestsPerSecond,
		DetailRetryDelay:  a.cfg.Scraper.DetailRetryDelay,
		Logger:            a.logger,
	}
	cleanup := func() {}

	if a.cfg.Cache.Enabled() {
		rdb := a.redisClient()
		if err := rdb.Ping(ctx).Err(); err != nil {
			a.logger.Warn("redis unavailable, continuing without response cache", "addr", a.cfg.Cache.RedisAddr, "error", err)
			rdb.Close()
		} else {
			opts.Cache = cache.NewRedisCache(rdb, a.cfg.Cache.TTL, a.logger)
			cleanup = func() { rdb.Close() }
		}
	}

	return rewe.NewClient(opts), cleanup
}

// openDatabase connects to postgres and applies the schema.
func (a *app) openDatabase(ctx context.Context) (*database.DB, error) {
	if !a.cfg.Database.Enabled {
		return nil, fmt.Errorf("database is not enabled, set DB_ENABLED=true or database.enabled in the config file")
	}

	db, err := database.New(ctx, database.Config{
		DSN:      a.cfg.Database.DSN(),
		MaxConns: a.cfg.Database.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (a *app) snapshotRepository(db *database.DB) *database.SnapshotRepository {
	return database.NewSnapshotRepository(db, database.NewOutboxRepository(db, a.cfg.Relay.Stream), a.logger)
}
