package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"guest-relay-bot/internal/models"
	"guest-relay-bot/internal/store"
)

const (
	cacheSafeTag   = "SAFE"
	cacheUnsafeTag = "UNSAFE:"
)

// ModCache memoizes moderation verdicts keyed by a SHA-256 digest of the
// exact content string. Content below the minimum length bypasses the
// cache entirely and is always re-evaluated. Entries age out via TTL;
// there is no manual invalidation path.
type ModCache struct {
	store  store.Store
	minLen int
	ttl    time.Duration
}

// NewModCache creates a moderation cache. Content shorter than minLen
// runes is neither looked up nor stored.
func NewModCache(s store.Store, minLen int, ttl time.Duration) *ModCache {
	return &ModCache{store: s, minLen: minLen, ttl: ttl}
}

// Lookup returns the cached verdict for content. hit is false on a miss
// or when the content is below the minimum length.
func (c *ModCache) Lookup(ctx context.Context, content string) (hit bool, verdict models.Verdict, err error) {
	if len([]rune(content)) < c.minLen {
		return false, models.Safe(), nil
	}
	raw, err := c.store.Get(ctx, cacheKey(content))
	if err == store.ErrNotFound {
		return false, models.Safe(), nil
	}
	if err != nil {
		return false, models.Safe(), fmt.Errorf("failed to read moderation cache: %w", err)
	}
	return true, decodeVerdict(raw), nil
}

// Store caches a verdict for content. A no-op below the minimum length.
func (c *ModCache) Store(ctx context.Context, content string, verdict models.Verdict) error {
	if len([]rune(content)) < c.minLen {
		return nil
	}
	if err := c.store.Put(ctx, cacheKey(content), encodeVerdict(verdict), c.ttl); err != nil {
		return fmt.Errorf("failed to write moderation cache: %w", err)
	}
	return nil
}

// cacheKey hashes the exact content value; the content itself is never
// stored.
func cacheKey(content string) string {
	sum := sha256.Sum256([]byte(content))
	return prefixModCache + hex.EncodeToString(sum[:])
}

func encodeVerdict(v models.Verdict) string {
	if v.Unsafe {
		return cacheUnsafeTag + v.Reason
	}
	return cacheSafeTag
}

func decodeVerdict(raw string) models.Verdict {
	if strings.HasPrefix(raw, cacheUnsafeTag) {
		return models.Unsafe(strings.TrimPrefix(raw, cacheUnsafeTag))
	}
	return models.Safe()
}
