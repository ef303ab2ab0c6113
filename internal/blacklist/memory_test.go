package blacklist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAddContains(t *testing.T) {
	bl := NewMemory()
	ctx := context.Background()

	found, err := bl.Contains(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, bl.Add(ctx, "revoked-token", time.Now().Add(time.Hour)))

	found, err = bl.Contains(ctx, "revoked-token")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemoryEntryExpires(t *testing.T) {
	bl := NewMemory()
	ctx := context.Background()

	require.NoError(t, bl.Add(ctx, "short-lived", time.Now().Add(20*time.Millisecond)))

	found, err := bl.Contains(ctx, "short-lived")
	require.NoError(t, err)
	assert.True(t, found)

	time.Sleep(30 * time.Millisecond)

	found, err = bl.Contains(ctx, "short-lived")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryIgnoresAlreadyExpired(t *testing.T) {
	bl := NewMemory()
	ctx := context.Background()

	require.NoError(t, bl.Add(ctx, "stale", time.Now().Add(-time.Minute)))

	found, err := bl.Contains(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, found)
}
