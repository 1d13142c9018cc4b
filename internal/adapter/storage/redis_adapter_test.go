package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisAdapter) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisAdapter(client)
}

func TestSetIdempotency_FirstTime(t *testing.T) {
	mr, adapter := setupMiniRedis(t)

	ok, err := adapter.SetIdempotency(context.Background(), "order:user-1:req-1")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, mr.Exists("order:user-1:req-1"))
	assert.Equal(t, 24*time.Hour, mr.TTL("order:user-1:req-1"))
}

func TestSetIdempotency_Duplicate(t *testing.T) {
	_, adapter := setupMiniRedis(t)
	ctx := context.Background()

	ok, err := adapter.SetIdempotency(ctx, "order:user-1:req-1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = adapter.SetIdempotency(ctx, "order:user-1:req-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetIdempotency_ExpiresAfterTTL(t *testing.T) {
	mr, adapter := setupMiniRedis(t)
	ctx := context.Background()

	_, err := adapter.SetIdempotency(ctx, "order:user-1:req-1")
	require.NoError(t, err)

	mr.FastForward(24*time.Hour + time.Second)

	ok, err := adapter.SetIdempotency(ctx, "order:user-1:req-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseIdempotency(t *testing.T) {
	_, adapter := setupMiniRedis(t)
	ctx := context.Background()

	_, err := adapter.SetIdempotency(ctx, "order:user-1:req-1")
	require.NoError(t, err)
	require.NoError(t, adapter.ReleaseIdempotency(ctx, "order:user-1:req-1"))

	ok, err := adapter.SetIdempotency(ctx, "order:user-1:req-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetIdempotency_Concurrent(t *testing.T) {
	_, adapter := setupMiniRedis(t)

	var (
		wg      sync.WaitGroup
		claimed atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.SetIdempotency(context.Background(), "order:user-1:same")
			if err == nil && ok {
				claimed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), claimed.Load())
}

func TestAcquireLock_Exclusive(t *testing.T) {
	mr, adapter := setupMiniRedis(t)
	ctx := context.Background()

	token, ok, err := adapter.AcquireLock(ctx, "price-recalculation", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)
	assert.Equal(t, time.Minute, mr.TTL("job:price-recalculation"))

	_, ok, err = adapter.AcquireLock(ctx, "price-recalculation", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, adapter.ReleaseLock(ctx, "price-recalculation", token))

	_, ok, err = adapter.AcquireLock(ctx, "price-recalculation", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseLock_IgnoresForeignToken(t *testing.T) {
	mr, adapter := setupMiniRedis(t)
	ctx := context.Background()

	_, ok, err := adapter.AcquireLock(ctx, "user-cleanup", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, adapter.ReleaseLock(ctx, "user-cleanup", "someone-else"))
	assert.True(t, mr.Exists("job:user-cleanup"))
}

func TestAcquireLock_ExpiresAfterTTL(t *testing.T) {
	mr, adapter := setupMiniRedis(t)
	ctx := context.Background()

	_, ok, err := adapter.AcquireLock(ctx, "user-cleanup", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(time.Minute + time.Second)

	_, ok, err = adapter.AcquireLock(ctx, "user-cleanup", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
