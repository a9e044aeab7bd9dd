package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryConfirmationLocker(t *testing.T) {
	locker := NewMemoryConfirmationLocker()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := locker.Acquire(ctx, "b1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = locker.Acquire(ctx, "b1", time.Minute)
	assert.False(t, ok)

	ok, _ = locker.Acquire(ctx, "b2", time.Minute)
	assert.True(t, ok, "locks are per booking")

	now = now.Add(2 * time.Minute)
	ok, _ = locker.Acquire(ctx, "b1", time.Minute)
	assert.True(t, ok, "expired lock is taken over")

	require.NoError(t, locker.Release(ctx, "b1"))
	ok, _ = locker.Acquire(ctx, "b1", time.Minute)
	assert.True(t, ok)
}
