package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerExclusive(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	token, ok, err := l.AcquireLock(ctx, "basket:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.AcquireLock(ctx, "basket:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = l.AcquireLock(ctx, "basket:2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.ReleaseLock(ctx, "basket:1", "stale-token"))
	_, ok, _ = l.AcquireLock(ctx, "basket:1", time.Minute)
	assert.False(t, ok)

	require.NoError(t, l.ReleaseLock(ctx, "basket:1", token))
	_, ok, _ = l.AcquireLock(ctx, "basket:1", time.Minute)
	assert.True(t, ok)
}

func TestLocalLockerExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.nowFunc = func() time.Time { return now }

	_, ok, _ := l.AcquireLock(ctx, "basket:1", 10*time.Second)
	require.True(t, ok)

	now = now.Add(11 * time.Second)
	_, ok, _ = l.AcquireLock(ctx, "basket:1", 10*time.Second)
	assert.True(t, ok)

	require.NoError(t, l.SetIdempotencyKey(ctx, "k", "17", time.Minute))
	value, found, err := l.GetIdempotencyKey(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "17", value)

	now = now.Add(2 * time.Minute)
	_, found, err = l.GetIdempotencyKey(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}
