// Package repository defines the key-value storage abstraction and the roster
// collections persisted on top of it
package repository

import (
	"context"
)

// KVStore is a string-keyed store holding serialized collections
type KVStore interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// RemoveMany deletes every given key
	RemoveMany(ctx context.Context, keys ...string) error
	// Close releases the backend's resources
	Close() error
}

// Storage keys, one per collection
const (
	LocationsKey = "LCL_LOC"
	StudentsKey  = "LCL_STU"
	TeachersKey  = "LCL_TEA"
	GroupsKey    = "LCL_GRU"
	SettingsKey  = "LCL_SET"
)

// AllKeys lists every collection key
var AllKeys = []string{LocationsKey, StudentsKey, TeachersKey, GroupsKey, SettingsKey}
