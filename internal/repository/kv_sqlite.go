package repository

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/pocketbase/dbx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"afterschool-toast/migrations"
)

// SQLiteKV stores every key as a row of the kv_entries table
type SQLiteKV struct {
	db     *dbx.DB
	logger *zap.Logger
}

var _ KVStore = (*SQLiteKV)(nil)

// OpenSQLiteKV opens (creating if needed) the database at path and applies pending migrations
func OpenSQLiteKV(ctx context.Context, path string, logger *zap.Logger) (*SQLiteKV, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating sqlite directory")
		}
	}

	db, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}

	applied, err := migrations.Up(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, name := range applied {
		logger.Info("applied migration", zap.String("migration", name))
	}

	logger.Info("sqlite store opened", zap.String("path", path))
	return &SQLiteKV{db: db, logger: logger}, nil
}

// OpenSQLite opens the raw database handle without migrating
func OpenSQLite(path string) (*dbx.DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := dbx.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite database")
	}
	// single writer
	db.DB().SetMaxOpenConns(1)
	return db, nil
}

func (s *SQLiteKV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.NewQuery("SELECT value FROM kv_entries WHERE key = {:key}").
		Bind(dbx.Params{"key": key}).
		WithContext(ctx).
		Row(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "reading key %s", key)
	}
	return value, true, nil
}

func (s *SQLiteKV) Set(ctx context.Context, key, value string) error {
	_, err := s.db.NewQuery(`INSERT INTO kv_entries (key, value, updated_at) VALUES ({:key}, {:value}, {:at})
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`).
		Bind(dbx.Params{"key": key, "value": value, "at": time.Now().UTC().Format(time.RFC3339)}).
		WithContext(ctx).
		Execute()
	return errors.Wrapf(err, "writing key %s", key)
}

func (s *SQLiteKV) Remove(ctx context.Context, key string) error {
	_, err := s.db.NewQuery("DELETE FROM kv_entries WHERE key = {:key}").
		Bind(dbx.Params{"key": key}).
		WithContext(ctx).
		Execute()
	return errors.Wrapf(err, "removing key %s", key)
}

func (s *SQLiteKV) RemoveMany(ctx context.Context, keys ...string) error {
	return s.db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
		for _, key := range keys {
			_, err := tx.NewQuery("DELETE FROM kv_entries WHERE key = {:key}").
				Bind(dbx.Params{"key": key}).
				WithContext(ctx).
				Execute()
			if err != nil {
				return errors.Wrapf(err, "removing key %s", key)
			}
		}
		return nil
	})
}

func (s *SQLiteKV) Close() error {
	return s.db.Close()
}

// DB exposes the handle for migration commands
func (s *SQLiteKV) DB() *dbx.DB { return s.db }
