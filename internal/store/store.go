// Package store defines the key-value state store contract all durable
// state lives behind, plus Redis and in-memory implementations.
//
// The contract is deliberately small: get, put with optional TTL, delete
// and prefix listing. There is no compare-and-swap; callers performing
// read-modify-write sequences must tolerate lost updates under concurrent
// events for the same key.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("store: key not found")

// Store is the durable key-value mapping with per-key expiry.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Put writes value under key. A ttl of zero means no expiry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns all keys with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
