package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisKV stores every key as a plain Redis string under a common prefix
type RedisKV struct {
	rdb    *goredis.Client
	prefix string
	logger *zap.Logger
}

var _ KVStore = (*RedisKV)(nil)

// RedisOptions configures the Redis backend
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisKV connects and pings Redis
func NewRedisKV(opts RedisOptions, logger *zap.Logger) (*RedisKV, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "connecting to redis")
	}

	logger.Info("redis store connected", zap.String("addr", opts.Addr), zap.String("prefix", opts.Prefix))
	return &RedisKV{rdb: rdb, prefix: opts.Prefix, logger: logger}, nil
}

func (r *RedisKV) key(k string) string { return r.prefix + k }

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, r.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "reading key %s", key)
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return errors.Wrapf(r.rdb.Set(ctx, r.key(key), value, 0).Err(), "writing key %s", key)
}

func (r *RedisKV) Remove(ctx context.Context, key string) error {
	return errors.Wrapf(r.rdb.Del(ctx, r.key(key)).Err(), "removing key %s", key)
}

func (r *RedisKV) RemoveMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	return errors.Wrap(r.rdb.Del(ctx, full...).Err(), "removing keys")
}

func (r *RedisKV) Close() error {
	return r.rdb.Close()
}
