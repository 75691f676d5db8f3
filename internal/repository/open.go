package repository

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"afterschool-toast/config"
)

// OpenKV opens the backend selected by cfg.Backend
func OpenKV(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (KVStore, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Warn("using the in-memory store, the roster is lost on exit")
		return NewMemoryKV(), nil
	case config.BackendSQLite:
		return OpenSQLiteKV(ctx, cfg.SQLitePath, logger)
	case config.BackendRedis:
		return NewRedisKV(RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		}, logger)
	default:
		return nil, errors.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// StoreOptions maps the store config onto RosterStore options
func StoreOptions(cfg config.StoreConfig, logger *zap.Logger) []Option {
	opts := []Option{WithLogger(logger)}
	if cfg.Locking {
		opts = append(opts, WithCollectionLocks())
	}
	return opts
}
