package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func TestCoordinatorMissThenHit(t *testing.T) {
	ctx := context.Background()
	mem, err := NewMemory[record](8)
	require.NoError(t, err)
	c := NewCoordinator[record](mem)

	calls := 0
	compute := func(context.Context) (record, error) {
		calls++
		return record{Name: "a", Size: 10}, nil
	}

	v, hit, err := c.Do(ctx, "k", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "a", v.Name)

	v, hit, err = c.Do(ctx, "k", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int64(10), v.Size)
	assert.Equal(t, 1, calls)
}

func TestCoordinatorSingleFlight(t *testing.T) {
	mem, err := NewMemory[record](8)
	require.NoError(t, err)
	c := NewCoordinator[record](mem)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (record, error) {
		calls.Add(1)
		<-release
		return record{Name: "shared"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := c.Do(context.Background(), "same", compute)
			assert.NoError(t, err)
			assert.Equal(t, "shared", v.Name)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestCoordinatorErrorsAreNotCached(t *testing.T) {
	mem, err := NewMemory[record](8)
	require.NoError(t, err)
	c := NewCoordinator[record](mem)

	boom := errors.New("boom")
	_, _, err = c.Do(context.Background(), "k", func(context.Context) (record, error) {
		return record{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, mem.Len())
}

func TestCoordinatorAdmit(t *testing.T) {
	mem, err := NewMemory[record](8)
	require.NoError(t, err)
	c := NewCoordinator[record](mem, WithAdmit(func(r record) bool { return r.Size < 100 }))

	_, _, err = c.Do(context.Background(), "big", func(context.Context) (record, error) {
		return record{Size: 1000}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, mem.Len())
}

func TestCoordinatorNilStore(t *testing.T) {
	c := NewCoordinator[record](nil)
	calls := 0
	for i := 0; i < 2; i++ {
		_, hit, err := c.Do(context.Background(), "k", func(context.Context) (record, error) {
			calls++
			return record{}, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, 2, calls)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store, err := NewRedis[record](ctx, RedisConfig{Addr: mr.Addr(), TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", record{Name: "x", Size: 3}))
	assert.True(t, mr.Exists("derivimg:k"))

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, record{Name: "x", Size: 3}, got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreRequiresAddr(t *testing.T) {
	_, err := NewRedis[record](context.Background(), RedisConfig{})
	assert.Error(t, err)
}

func TestCoordinatorSurvivesLeaderCancellation(t *testing.T) {
	mem, err := NewMemory[record](8)
	require.NoError(t, err)
	c := NewCoordinator[record](mem)

	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (record, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return record{}, err
		}
		return record{Name: "shared", Size: 1}, nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := c.Do(leaderCtx, "k", compute)
		leaderErr <- err
	}()
	<-started

	type result struct {
		v   record
		err error
	}
	follower := make(chan result, 1)
	go func() {
		v, _, err := c.Do(context.Background(), "k", compute)
		follower <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(release)
	res := <-follower
	require.NoError(t, res.err)
	assert.Equal(t, "shared", res.v.Name)
	assert.Equal(t, 1, mem.Len())
}
