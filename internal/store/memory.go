package store

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore implements Store with an in-process TTL cache. It backs
// local development without Redis and the package tests.
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates an empty in-memory store. Expired entries are
// purged in the background every minute.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	val, found := s.cache.Get(key)
	if !found {
		return "", ErrNotFound
	}
	return val.(string), nil
}

func (s *MemoryStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.cache.Set(key, value, ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for key := range s.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
