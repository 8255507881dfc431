package redlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestLockAndUnlock(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	locker := NewLocker(client, "escrow:esc_1", "holder-a")
	assert.NoError(t, locker.Lock(ctx, time.Minute))

	// A second holder cannot take the same lock while it is held.
	other := NewLocker(client, "escrow:esc_1", "holder-b")
	assert.Error(t, other.Lock(ctx, time.Minute))

	// Only the holder can unlock.
	assert.Error(t, other.Unlock(ctx))
	assert.NoError(t, locker.Unlock(ctx))

	// Once released, the other holder can acquire it.
	assert.NoError(t, other.Lock(ctx, time.Minute))
}

func TestExtendLock(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	locker := NewLocker(client, "project:prj_1", "holder")
	assert.NoError(t, locker.Lock(ctx, time.Minute))
	assert.NoError(t, locker.ExtendLock(ctx, 2*time.Minute))

	stranger := NewLocker(client, "project:prj_1", "stranger")
	assert.Error(t, stranger.ExtendLock(ctx, time.Minute))
}
