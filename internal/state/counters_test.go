package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guest-relay-bot/internal/store"
)

func TestCounters_IncrementDecrement(t *testing.T) {
	counters := NewCounters(store.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, counters.Increment(ctx, "total-relays"))
	require.NoError(t, counters.Increment(ctx, "total-relays"))

	val, err := counters.Get(ctx, "total-relays")
	require.NoError(t, err)
	assert.Equal(t, 2, val)

	require.NoError(t, counters.Decrement(ctx, "total-relays"))
	val, err = counters.Get(ctx, "total-relays")
	require.NoError(t, err)
	assert.Equal(t, 1, val)
}

func TestCounters_DecrementSaturatesAtZero(t *testing.T) {
	counters := NewCounters(store.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, counters.Decrement(ctx, "total-blocked"))
	require.NoError(t, counters.Decrement(ctx, "total-blocked"))

	val, err := counters.Get(ctx, "total-blocked")
	require.NoError(t, err)
	assert.Equal(t, 0, val)
}
