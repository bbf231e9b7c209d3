package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobLock_TryAcquire(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	lock := NewJobLock(client)
	ctx := context.Background()

	owner, ok, err := lock.TryAcquire(ctx, "reconcile", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "first acquire should succeed")
	assert.NotEmpty(t, owner)

	_, ok, err = lock.TryAcquire(ctx, "reconcile", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lock should not be acquired twice")

	_, ok, err = lock.TryAcquire(ctx, "other-job", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "locks are independent per name")
}

func TestJobLock_ExpiresAfterTTL(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	lock := NewJobLock(client)
	ctx := context.Background()

	_, ok, err := lock.TryAcquire(ctx, "reconcile", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	s.FastForward(2 * time.Second)

	_, ok, err = lock.TryAcquire(ctx, "reconcile", time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock should be acquirable again")
}

func TestJobLock_Release(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	lock := NewJobLock(client)
	ctx := context.Background()

	owner, ok, err := lock.TryAcquire(ctx, "reconcile", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// A stale owner must not free someone else's lock.
	require.NoError(t, lock.Release(ctx, "reconcile", "someone-else"))
	assert.True(t, s.Exists("joblock:reconcile"))

	require.NoError(t, lock.Release(ctx, "reconcile", owner))
	assert.False(t, s.Exists("joblock:reconcile"))

	// Releasing an absent lock is a no-op.
	assert.NoError(t, lock.Release(ctx, "reconcile", owner))
}

// takeoverHook hands the lock to another owner right after the first
// command that touches key, standing in for expiry plus a rival acquire.
type takeoverHook struct {
	key  string
	once sync.Once
	take func()
}

func (h *takeoverHook) DialHook(next goredis.DialHook) goredis.DialHook { return next }

func (h *takeoverHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		err := next(ctx, cmd)
		for _, arg := range cmd.Args() {
			if arg == h.key {
				h.once.Do(h.take)
				break
			}
		}
		return err
	}
}

func (h *takeoverHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return next
}

func TestJobLock_Release_KeepsLockTakenOverMidRelease(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	lock := NewJobLock(client)
	ctx := context.Background()

	owner, ok, err := lock.TryAcquire(ctx, "reconcile", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	client.AddHook(&takeoverHook{
		key:  "joblock:reconcile",
		take: func() { require.NoError(t, s.Set("joblock:reconcile", "replica-b")) },
	})

	require.NoError(t, lock.Release(ctx, "reconcile", owner))

	value, err := s.Get("joblock:reconcile")
	require.NoError(t, err)
	assert.Equal(t, "replica-b", value)
}
