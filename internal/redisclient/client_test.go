package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryKey(t *testing.T) {
	assert.Equal(t, "inventory:42", inventoryKey(42))
}

func TestScriptsEmbedded(t *testing.T) {
	for name, src := range map[string]string{
		"reserve": reserveStockScript,
		"release": releaseStockScript,
		"commit":  commitStockScript,
		"unlock":  releaseLockScript,
	} {
		assert.NotEmpty(t, src, name)
	}
}

func TestReserveAndLock(t *testing.T) {
	t.Skip("Integration test - requires Redis")

	client, err := NewClient("localhost:6379", "", 15)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	ok, err := client.ReserveStock(ctx, 999001, 1)
	assert.ErrorIs(t, err, ErrNotCached)
	assert.False(t, ok)

	require.NoError(t, client.InitInventory(ctx, 999001, 2, 0))
	ok, err = client.ReserveStock(ctx, 999001, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = client.ReserveStock(ctx, 999001, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	available, reserved, err := client.GetInventory(ctx, 999001)
	require.NoError(t, err)
	assert.Equal(t, 0, available)
	assert.Equal(t, 2, reserved)

	token, ok, err := client.AcquireLock(ctx, "basket:test", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = client.AcquireLock(ctx, "basket:test", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.ReleaseLock(ctx, "basket:test", token))
}
