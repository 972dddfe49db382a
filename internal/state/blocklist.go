package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"guest-relay-bot/internal/models"
	"guest-relay-bot/internal/store"
)

// Blocklist is the per-guest block registry. The block flag and block-info
// are written and cleared together, and blocking unconditionally resets
// the guest's trust score: trust is never retained across a ban.
type Blocklist struct {
	store    store.Store
	counters *Counters
	trust    *Trust
}

// NewBlocklist creates a block registry over the given store.
func NewBlocklist(s store.Store, counters *Counters, trust *Trust) *Blocklist {
	return &Blocklist{store: s, counters: counters, trust: trust}
}

// SetBlocked blocks or unblocks a guest. Blocking writes the flag and the
// block-info together, increments the total-blocked counter and resets the
// trust score; unblocking deletes both keys and decrements the counter
// (saturating at zero).
func (b *Blocklist) SetBlocked(ctx context.Context, guestID string, blocked bool, reason string) error {
	if blocked {
		info := models.BlockInfo{GuestID: guestID, Reason: reason, BlockedAt: time.Now().UTC()}
		data, err := json.Marshal(info)
		if err != nil {
			return fmt.Errorf("failed to marshal block info for guest %s: %w", guestID, err)
		}
		if err := b.store.Put(ctx, prefixBlocked+guestID, "1", 0); err != nil {
			return fmt.Errorf("failed to set block flag for guest %s: %w", guestID, err)
		}
		if err := b.store.Put(ctx, prefixBlockInfo+guestID, string(data), 0); err != nil {
			return fmt.Errorf("failed to write block info for guest %s: %w", guestID, err)
		}
		if err := b.counters.Increment(ctx, CounterTotalBlocked); err != nil {
			log.Warn().Err(err).Msg("Failed to increment total-blocked counter")
		}
		if err := b.trust.Reset(ctx, guestID); err != nil {
			return fmt.Errorf("failed to reset trust for blocked guest %s: %w", guestID, err)
		}
		log.Info().Str("guestID", guestID).Str("reason", reason).Msg("Guest blocked")
		return nil
	}

	if err := b.store.Delete(ctx, prefixBlocked+guestID); err != nil {
		return fmt.Errorf("failed to clear block flag for guest %s: %w", guestID, err)
	}
	if err := b.store.Delete(ctx, prefixBlockInfo+guestID); err != nil {
		return fmt.Errorf("failed to clear block info for guest %s: %w", guestID, err)
	}
	if err := b.counters.Decrement(ctx, CounterTotalBlocked); err != nil {
		log.Warn().Err(err).Msg("Failed to decrement total-blocked counter")
	}
	log.Info().Str("guestID", guestID).Msg("Guest unblocked")
	return nil
}

// IsBlocked reports whether a guest is currently blocked.
func (b *Blocklist) IsBlocked(ctx context.Context, guestID string) (bool, error) {
	_, err := b.store.Get(ctx, prefixBlocked+guestID)
	if err == store.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read block flag for guest %s: %w", guestID, err)
	}
	return true, nil
}

// BlockInfo returns the reason and timestamp for a blocked guest, or nil
// when no block info exists.
func (b *Blocklist) BlockInfo(ctx context.Context, guestID string) (*models.BlockInfo, error) {
	raw, err := b.store.Get(ctx, prefixBlockInfo+guestID)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read block info for guest %s: %w", guestID, err)
	}
	var info models.BlockInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return nil, fmt.Errorf("corrupt block info for guest %s: %w", guestID, err)
	}
	if info.GuestID == "" {
		info.GuestID = guestID
	}
	return &info, nil
}

// ListBlocked enumerates all block records. This is the authoritative
// count source for statistics; the total-blocked counter can drift under
// concurrent writes.
func (b *Blocklist) ListBlocked(ctx context.Context) ([]models.BlockInfo, error) {
	keys, err := b.store.List(ctx, prefixBlockInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate block records: %w", err)
	}
	infos := make([]models.BlockInfo, 0, len(keys))
	for _, key := range keys {
		guestID := strings.TrimPrefix(key, prefixBlockInfo)
		info, err := b.BlockInfo(ctx, guestID)
		if err != nil || info == nil {
			continue
		}
		infos = append(infos, *info)
	}
	return infos, nil
}
