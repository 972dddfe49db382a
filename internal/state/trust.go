package state

import (
	"context"
	"fmt"
	"strconv"

	"guest-relay-bot/internal/store"
)

// Trust is the per-guest ledger of consecutive passed moderation checks.
// Reaching the threshold exempts the guest from moderation. The score is
// clamped at the threshold, never wrapped, and a reset deletes the stored
// value entirely (absent reads back as zero).
type Trust struct {
	store     store.Store
	threshold int
}

// NewTrust creates a trust ledger with the given threshold.
func NewTrust(s store.Store, threshold int) *Trust {
	return &Trust{store: s, threshold: threshold}
}

// Threshold returns the configured trust threshold.
func (t *Trust) Threshold() int { return t.threshold }

// Score returns the guest's current trust score.
func (t *Trust) Score(ctx context.Context, guestID string) (int, error) {
	raw, err := t.store.Get(ctx, prefixTrust+guestID)
	if err == store.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read trust score for guest %s: %w", guestID, err)
	}
	score, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt trust score for guest %s: %w", guestID, err)
	}
	return score, nil
}

// Increment adds one passed check to the guest's score. A no-op once the
// score already sits at the threshold.
func (t *Trust) Increment(ctx context.Context, guestID string) error {
	score, err := t.Score(ctx, guestID)
	if err != nil {
		return err
	}
	if score >= t.threshold {
		return nil
	}
	return t.write(ctx, guestID, score+1)
}

// Reset deletes the guest's trust score.
func (t *Trust) Reset(ctx context.Context, guestID string) error {
	if err := t.store.Delete(ctx, prefixTrust+guestID); err != nil {
		return fmt.Errorf("failed to reset trust score for guest %s: %w", guestID, err)
	}
	return nil
}

// ForceTrust writes the threshold value directly, granting immediate
// moderation exemption.
func (t *Trust) ForceTrust(ctx context.Context, guestID string) error {
	return t.write(ctx, guestID, t.threshold)
}

// IsTrusted reports whether the guest's score has reached the threshold.
func (t *Trust) IsTrusted(ctx context.Context, guestID string) (bool, error) {
	score, err := t.Score(ctx, guestID)
	if err != nil {
		return false, err
	}
	return score >= t.threshold, nil
}

func (t *Trust) write(ctx context.Context, guestID string, score int) error {
	if err := t.store.Put(ctx, prefixTrust+guestID, strconv.Itoa(score), 0); err != nil {
		return fmt.Errorf("failed to write trust score for guest %s: %w", guestID, err)
	}
	return nil
}
