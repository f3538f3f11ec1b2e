package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicef/hope-sub007/internal/testfixtures"
	"github.com/unicef/hope-sub007/pkg/lock"
)

func newLocker(t *testing.T) (*lock.RedisLocker, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return lock.NewRedisLocker(rdb, lock.Config{KeyPrefix: "lock:test:", TTL: time.Minute}, testfixtures.Logger()), mr
}

func TestRedisLocker_Exclusive(t *testing.T) {
	ctx := context.Background()
	locker, mr := newLocker(t)

	lease, err := locker.Acquire(ctx, "afghanistan")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:test:afghanistan"))

	_, err = locker.Acquire(ctx, "afghanistan")
	assert.ErrorIs(t, err, lock.ErrLockNotAcquired)

	other, err := locker.Acquire(ctx, "ukraine")
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists("lock:test:afghanistan"))

	again, err := locker.Acquire(ctx, "afghanistan")
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestRedisLocker_ExpiredLeaseIsNotReleased(t *testing.T) {
	ctx := context.Background()
	locker, mr := newLocker(t)

	lease, err := locker.Acquire(ctx, "afghanistan")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	successor, err := locker.Acquire(ctx, "afghanistan")
	require.NoError(t, err)

	assert.ErrorIs(t, lease.Release(ctx), lock.ErrLockNotHeld)
	assert.ErrorIs(t, lease.Extend(ctx, time.Minute), lock.ErrLockNotHeld)
	assert.True(t, mr.Exists("lock:test:afghanistan"))

	require.NoError(t, successor.Extend(ctx, 5*time.Minute))
	assert.Equal(t, 5*time.Minute, mr.TTL("lock:test:afghanistan"))
	require.NoError(t, successor.Release(ctx))
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var locker lock.Locker = lock.Noop{}
	a, err := locker.Acquire(ctx, "x")
	require.NoError(t, err)
	b, err := locker.Acquire(ctx, "x")
	require.NoError(t, err)
	assert.NoError(t, a.Release(ctx))
	assert.NoError(t, b.Extend(ctx, time.Second))
}
