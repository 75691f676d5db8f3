// Package migrations holds the schema steps of the SQLite key-value backend.
// Each step registers itself from an init func in its own file.
package migrations

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/pocketbase/dbx"
)

// Migration is one versioned schema step
type Migration struct {
	Version int64
	Name    string
	Up      func(b dbx.Builder) error
	Down    func(b dbx.Builder) error
}

// State reports whether a registered migration has been applied
type State struct {
	Migration
	Applied bool
}

var registry []Migration

// Register adds a migration. Versions must be unique.
func Register(version int64, name string, up, down func(b dbx.Builder) error) {
	for _, m := range registry {
		if m.Version == version {
			panic(fmt.Sprintf("migrations: duplicate version %d", version))
		}
	}
	registry = append(registry, Migration{Version: version, Name: name, Up: up, Down: down})
	sort.Slice(registry, func(i, j int) bool { return registry[i].Version < registry[j].Version })
}

// All returns the registered migrations ordered by version
func All() []Migration {
	out := make([]Migration, len(registry))
	copy(out, registry)
	return out
}

func ensureTable(ctx context.Context, db *dbx.DB) error {
	_, err := db.NewQuery(`CREATE TABLE IF NOT EXISTS _migrations (
		version    INTEGER PRIMARY KEY NOT NULL,
		name       TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`).WithContext(ctx).Execute()
	return errors.Wrap(err, "creating _migrations table")
}

func appliedVersions(ctx context.Context, db *dbx.DB) (map[int64]bool, error) {
	var versions []int64
	if err := db.NewQuery("SELECT version FROM _migrations").WithContext(ctx).Column(&versions); err != nil {
		return nil, errors.Wrap(err, "reading applied migrations")
	}
	applied := make(map[int64]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

// Up applies every pending migration in order and returns the names applied
func Up(ctx context.Context, db *dbx.DB) ([]string, error) {
	if err := ensureTable(ctx, db); err != nil {
		return nil, err
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, m := range registry {
		if applied[m.Version] {
			continue
		}
		m := m
		err := db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			_, err := tx.NewQuery("INSERT INTO _migrations (version, name, applied_at) VALUES ({:version}, {:name}, {:at})").
				Bind(dbx.Params{"version": m.Version, "name": m.Name, "at": time.Now().UTC().Format(time.RFC3339)}).
				Execute()
			return err
		})
		if err != nil {
			return done, errors.Wrapf(err, "applying migration %d_%s", m.Version, m.Name)
		}
		done = append(done, fmt.Sprintf("%d_%s", m.Version, m.Name))
	}
	return done, nil
}

// Down reverts the most recently applied migration. It returns "" when nothing is applied.
func Down(ctx context.Context, db *dbx.DB) (string, error) {
	if err := ensureTable(ctx, db); err != nil {
		return "", err
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return "", err
	}

	for i := len(registry) - 1; i >= 0; i-- {
		m := registry[i]
		if !applied[m.Version] {
			continue
		}
		err := db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
			if m.Down != nil {
				if err := m.Down(tx); err != nil {
					return err
				}
			}
			_, err := tx.NewQuery("DELETE FROM _migrations WHERE version = {:version}").
				Bind(dbx.Params{"version": m.Version}).
				Execute()
			return err
		})
		if err != nil {
			return "", errors.Wrapf(err, "reverting migration %d_%s", m.Version, m.Name)
		}
		return fmt.Sprintf("%d_%s", m.Version, m.Name), nil
	}
	return "", nil
}

// Status lists every registered migration and whether it is applied
func Status(ctx context.Context, db *dbx.DB) ([]State, error) {
	if err := ensureTable(ctx, db); err != nil {
		return nil, err
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}
	states := make([]State, 0, len(registry))
	for _, m := range registry {
		states = append(states, State{Migration: m, Applied: applied[m.Version]})
	}
	return states, nil
}
