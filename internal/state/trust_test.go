package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guest-relay-bot/internal/store"
)

func TestTrust_IncrementAndClamp(t *testing.T) {
	trust := NewTrust(store.NewMemoryStore(), 3)
	ctx := context.Background()

	trusted, err := trust.IsTrusted(ctx, "guest-1")
	require.NoError(t, err)
	assert.False(t, trusted)

	for i := 0; i < 3; i++ {
		require.NoError(t, trust.Increment(ctx, "guest-1"))
	}

	trusted, err = trust.IsTrusted(ctx, "guest-1")
	require.NoError(t, err)
	assert.True(t, trusted)

	// A further increment leaves the score clamped at the threshold.
	require.NoError(t, trust.Increment(ctx, "guest-1"))
	score, err := trust.Score(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, 3, score)
}

func TestTrust_ResetDeletesScore(t *testing.T) {
	trust := NewTrust(store.NewMemoryStore(), 3)
	ctx := context.Background()

	require.NoError(t, trust.Increment(ctx, "guest-1"))
	require.NoError(t, trust.Reset(ctx, "guest-1"))

	score, err := trust.Score(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, 0, score)
}

func TestTrust_ForceTrust(t *testing.T) {
	trust := NewTrust(store.NewMemoryStore(), 5)
	ctx := context.Background()

	require.NoError(t, trust.ForceTrust(ctx, "guest-1"))

	trusted, err := trust.IsTrusted(ctx, "guest-1")
	require.NoError(t, err)
	assert.True(t, trusted)
	score, err := trust.Score(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, 5, score)
}
