package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerExclusive(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "accrual:week:1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "accrual:week:1", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	other, err := l.Acquire(ctx, "accrual:week:2", time.Minute)
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := l.Acquire(ctx, "accrual:week:1", time.Minute)
	require.NoError(t, err)
	again()
}

func TestLocalLockerExpires(t *testing.T) {
	l := NewLocalLocker()
	now := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	l.clock = func() time.Time { return now }

	stale, err := l.Acquire(context.Background(), "job", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	fresh, err := l.Acquire(context.Background(), "job", time.Second)
	require.NoError(t, err)

	stale()
	_, err = l.Acquire(context.Background(), "job", time.Second)
	assert.ErrorIs(t, err, ErrLocked, "releasing an expired lock must not free the new holder")
	fresh()
}
