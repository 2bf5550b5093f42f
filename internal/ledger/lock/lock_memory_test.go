package lock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"las/internal/ledger/models"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "7_1027700132195", Key(models.InstanceID(7), "1027700132195"))
}

func TestMemoryLockerExcludesHolders(t *testing.T) {
	l := NewMemory(0)
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var g errgroup.Group
	for range 16 {
		g.Go(func() error {
			lease, err := l.Acquire(ctx, "1_42")
			if err != nil {
				return err
			}
			defer lease.Release(ctx)

			n := inside.Add(1)
			for {
				cur := maxInside.Load()
				if n <= cur || maxInside.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), maxInside.Load())
	assert.Zero(t, l.held(), "released keys are dropped")
}

func TestMemoryLockerKeysAreIndependent(t *testing.T) {
	l := NewMemory(0)
	ctx := context.Background()

	a, err := l.Acquire(ctx, "1_1")
	require.NoError(t, err)
	b, err := l.Acquire(ctx, "1_2")
	require.NoError(t, err)

	require.NoError(t, a.Release(ctx))
	require.NoError(t, b.Release(ctx))
	assert.Zero(t, l.held())
}

func TestMemoryLockerWaitTimeout(t *testing.T) {
	l := NewMemory(20 * time.Millisecond)
	ctx := context.Background()

	held, err := l.Acquire(ctx, "1_42")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "1_42")
	require.ErrorIs(t, err, ErrWaitTimeout)
	assert.Equal(t, 1, l.held(), "timed out waiter must drop its reference")

	require.NoError(t, held.Release(ctx))
	require.NoError(t, held.Release(ctx), "release is idempotent")

	again, err := l.Acquire(ctx, "1_42")
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestMemoryLockerHonorsContext(t *testing.T) {
	l := NewMemory(0)
	held, err := l.Acquire(context.Background(), "1_42")
	require.NoError(t, err)
	defer held.Release(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, "1_42")
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, held.Lost())
}
