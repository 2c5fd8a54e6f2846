package otp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/apperr"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T, limit int64) (*CounterStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCounterStore(rdb, limit, zap.NewNop()), mr
}

func TestCheckCount_LazyCreate(t *testing.T) {
	store, _ := newTestStore(t, 5)

	c, err := store.CheckCount(context.Background(), "hash-1", "user-1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, c.Attempts)
	assert.NotEmpty(t, c.ID)
}

func TestCeilingRejectsWithinWindow(t *testing.T) {
	const limit = 3
	store, _ := newTestStore(t, limit)
	ctx := context.Background()

	for i := 0; i < limit; i++ {
		c, err := store.CheckCount(ctx, "hash-1", "user-1")
		require.NoError(t, err, "challenge %d should be allowed", i+1)
		_, err = store.AddCount(ctx, c)
		require.NoError(t, err)
	}

	_, err := store.CheckCount(ctx, "hash-1", "user-1")
	assert.Equal(t, apperr.TooManyRequests, apperr.KindOf(err))

	// Another identifier is unaffected.
	_, err = store.CheckCount(ctx, "hash-2", "user-1")
	assert.NoError(t, err)
}

func TestWindowExpiryResetsCounter(t *testing.T) {
	const limit = 2
	store, mr := newTestStore(t, limit)
	ctx := context.Background()

	for i := 0; i < limit; i++ {
		c, err := store.CheckCount(ctx, "hash-1", "user-1")
		require.NoError(t, err)
		_, err = store.AddCount(ctx, c)
		require.NoError(t, err)
	}
	_, err := store.CheckCount(ctx, "hash-1", "user-1")
	require.Equal(t, apperr.TooManyRequests, apperr.KindOf(err))

	mr.FastForward(2 * time.Minute)

	c, err := store.CheckCount(ctx, "hash-1", "user-1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, c.Attempts)
}

func TestAddCount_EscalatingWindows(t *testing.T) {
	store, mr := newTestStore(t, 10)
	ctx := context.Background()

	c, err := store.CheckCount(ctx, "hash-1", "user-1")
	require.NoError(t, err)

	expires, err := store.AddCount(ctx, c)
	require.NoError(t, err)
	assert.InDelta(t, time.Minute.Seconds(), time.Until(expires).Seconds(), 5)
	assert.Equal(t, time.Minute, mr.TTL(c.ID))

	_, err = store.AddCount(ctx, c)
	require.NoError(t, err)
	_, err = store.AddCount(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, mr.TTL(c.ID))

	_, err = store.AddCount(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL(c.ID))

	_, err = store.AddCount(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, mr.TTL(c.ID))
}

func TestDeleteCount(t *testing.T) {
	store, _ := newTestStore(t, 1)
	ctx := context.Background()

	c, err := store.CheckCount(ctx, "hash-1", "user-1")
	require.NoError(t, err)
	_, err = store.AddCount(ctx, c)
	require.NoError(t, err)

	require.NoError(t, store.DeleteCount(ctx, c.ID))

	fresh, err := store.CheckCount(ctx, "hash-1", "user-1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, fresh.Attempts)
}

func TestConcurrentIncrementsAreAtomic(t *testing.T) {
	store, _ := newTestStore(t, 100)
	ctx := context.Background()

	c, err := store.CheckCount(ctx, "hash-1", "user-1")
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.AddCount(ctx, &Counter{ID: c.ID})
		}()
	}
	wg.Wait()

	final, err := store.CheckCount(ctx, "hash-1", "user-1")
	require.NoError(t, err)
	assert.EqualValues(t, n, final.Attempts)
}
