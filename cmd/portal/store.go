package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/steva-school/parent-portal/internal/config"
	"github.com/steva-school/parent-portal/internal/session"
)

// newStore builds the configured session store and its cleanup func.
func newStore(ctx context.Context, cfg config.Session) (session.Store, func(), error) {
	noop := func() {}

	switch cfg.Store {
	case config.StoreMemory:
		slog.Warn("session store is in-memory; sessions end with the process")
		return session.NewMemoryStore(), noop, nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, noop, fmt.Errorf("redis ping failed: %w", err)
		}
		closeFn := func() {
			if err := rdb.Close(); err != nil {
				slog.Error("redis close error", slog.Any("err", err))
			}
		}
		return session.NewRedisStore(rdb, cfg.Redis.Prefix), closeFn, nil

	default:
		key, err := cfg.Key()
		if err != nil {
			return nil, noop, err
		}
		st, err := session.NewFileStore(cfg.Path, key)
		if err != nil {
			return nil, noop, err
		}
		return st, noop, nil
	}
}
