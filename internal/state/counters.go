package state

import (
	"context"
	"fmt"
	"strconv"

	"guest-relay-bot/internal/store"
)

// Counters manages named non-negative integer counters. Increments and
// decrements are read-modify-write sequences with no cross-operation
// atomicity; drift under concurrent events is accepted, which is why
// authoritative counts (e.g. the block list) come from prefix enumeration
// instead.
type Counters struct {
	store store.Store
}

// NewCounters creates a counter accessor over the given store.
func NewCounters(s store.Store) *Counters {
	return &Counters{store: s}
}

// Get returns the current value of a counter; absent counters read as 0.
func (c *Counters) Get(ctx context.Context, name string) (int, error) {
	raw, err := c.store.Get(ctx, prefixCounter+name)
	if err == store.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", name, err)
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt counter %s value %q: %w", name, raw, err)
	}
	return val, nil
}

// Increment adds one to the named counter.
func (c *Counters) Increment(ctx context.Context, name string) error {
	val, err := c.Get(ctx, name)
	if err != nil {
		return err
	}
	return c.put(ctx, name, val+1)
}

// Decrement subtracts one from the named counter, saturating at zero.
func (c *Counters) Decrement(ctx context.Context, name string) error {
	val, err := c.Get(ctx, name)
	if err != nil {
		return err
	}
	if val <= 0 {
		return c.put(ctx, name, 0)
	}
	return c.put(ctx, name, val-1)
}

func (c *Counters) put(ctx context.Context, name string, val int) error {
	if err := c.store.Put(ctx, prefixCounter+name, strconv.Itoa(val), 0); err != nil {
		return fmt.Errorf("failed to write counter %s: %w", name, err)
	}
	return nil
}
