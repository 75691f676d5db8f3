package repository

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"afterschool-toast/internal/models"
	"afterschool-toast/internal/seed"
)

// ErrNotInitialized is returned when reading a collection whose key was never written
var ErrNotInitialized = errors.New("collection not initialized")

// Collection is one named value persisted as JSON under its own key.
//
// Update is read-modify-write over the whole value. Without collection locks,
// two overlapping updates can both read the same snapshot and the later write
// drops the earlier one.
type Collection[T any] struct {
	key      string
	seed     []byte
	selfHeal bool
	kv       KVStore
	mu       *sync.Mutex
	logger   *zap.Logger
}

// Initialize writes the bundled seed if the key is absent
func (c *Collection[T]) Initialize(ctx context.Context) error {
	_, ok, err := c.kv.Get(ctx, c.key)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := c.kv.Set(ctx, c.key, string(c.seed)); err != nil {
		return err
	}
	c.logger.Debug("seeded collection", zap.String("key", c.key))
	return nil
}

// Read loads and decodes the collection
func (c *Collection[T]) Read(ctx context.Context) (T, error) {
	var out T

	raw, ok, err := c.kv.Get(ctx, c.key)
	if err != nil {
		return out, err
	}
	if !ok {
		if !c.selfHeal {
			return out, errors.Wrapf(ErrNotInitialized, "key %s", c.key)
		}
		if err := c.Initialize(ctx); err != nil {
			return out, err
		}
		if raw, ok, err = c.kv.Get(ctx, c.key); err != nil {
			return out, err
		} else if !ok {
			return out, errors.Wrapf(ErrNotInitialized, "key %s", c.key)
		}
	}

	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, errors.Wrapf(err, "decoding %s", c.key)
	}
	return out, nil
}

// Update applies fn to the current value and persists the result.
// When fn fails nothing is written.
func (c *Collection[T]) Update(ctx context.Context, fn func(T) (T, error)) error {
	if c.mu != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
	}

	current, err := c.Read(ctx)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	data, err := json.Marshal(next)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", c.key)
	}
	return c.kv.Set(ctx, c.key, string(data))
}

// RosterStore owns every roster collection
type RosterStore struct {
	kv     KVStore
	logger *zap.Logger

	Locations *Collection[[]models.Location]
	Students  *Collection[[]models.Student]
	Teachers  *Collection[[]models.Teacher]
	Groups    *Collection[[]models.Group]
	Settings  *Collection[models.Settings]
}

type storeOptions struct {
	locks  bool
	logger *zap.Logger
}

// Option configures a RosterStore
type Option func(*storeOptions)

// WithCollectionLocks serializes updates of each collection with a mutex
func WithCollectionLocks() Option {
	return func(o *storeOptions) { o.locks = true }
}

// WithLogger sets the store logger
func WithLogger(l *zap.Logger) Option {
	return func(o *storeOptions) { o.logger = l }
}

// NewRosterStore builds the store over kv with the given seed data
func NewRosterStore(kv KVStore, seeds seed.Bundle, opts ...Option) *RosterStore {
	o := storeOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &RosterStore{kv: kv, logger: o.logger}
	s.Locations = newCollection[[]models.Location](kv, LocationsKey, seeds.Locations, false, o)
	s.Students = newCollection[[]models.Student](kv, StudentsKey, seeds.Students, false, o)
	s.Teachers = newCollection[[]models.Teacher](kv, TeachersKey, seeds.Teachers, false, o)
	s.Groups = newCollection[[]models.Group](kv, GroupsKey, seeds.Groups, true, o)
	s.Settings = newCollection[models.Settings](kv, SettingsKey, seeds.Settings, true, o)
	return s
}

func newCollection[T any](kv KVStore, key string, seedData []byte, selfHeal bool, o storeOptions) *Collection[T] {
	c := &Collection[T]{
		key:      key,
		seed:     seedData,
		selfHeal: selfHeal,
		kv:       kv,
		logger:   o.logger,
	}
	if o.locks {
		c.mu = &sync.Mutex{}
	}
	return c
}

// InitializeAll seeds every collection whose key is absent
func (s *RosterStore) InitializeAll(ctx context.Context) error {
	steps := []func(context.Context) error{
		s.Locations.Initialize,
		s.Students.Initialize,
		s.Teachers.Initialize,
		s.Groups.Initialize,
		s.Settings.Initialize,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return errors.Wrap(err, "initializing roster")
		}
	}
	return nil
}

// Clear removes every collection key
func (s *RosterStore) Clear(ctx context.Context) error {
	return errors.Wrap(s.kv.RemoveMany(ctx, AllKeys...), "clearing roster")
}

// Reset clears the store and seeds it again from the bundled defaults
func (s *RosterStore) Reset(ctx context.Context) error {
	if err := s.Clear(ctx); err != nil {
		return err
	}
	if err := s.InitializeAll(ctx); err != nil {
		return err
	}
	s.logger.Info("roster reset to bundled defaults")
	return nil
}
