package repository

import (
	"context"

	"github.com/pocketbase/pocketbase/tools/store"
)

// MemoryKV keeps every key in process memory. Used by tests and the memory backend.
type MemoryKV struct {
	data *store.Store[string, string]
}

var _ KVStore = (*MemoryKV)(nil)

// NewMemoryKV creates an empty in-memory store
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: store.New[string, string](nil)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.data.GetOk(key)
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.data.Set(key, value)
	return nil
}

func (m *MemoryKV) Remove(_ context.Context, key string) error {
	m.data.Remove(key)
	return nil
}

func (m *MemoryKV) RemoveMany(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.data.Remove(key)
	}
	return nil
}

func (m *MemoryKV) Close() error { return nil }
