package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_FixedWindow(t *testing.T) {
	s, err := NewMemoryStorage(8)
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		n, reset, err := s.Hit(ctx, "k", time.Minute)
		require.NoError(t, err)
		require.Equal(t, i, n)
		require.Equal(t, now.Add(time.Minute), reset)
	}

	now = now.Add(time.Minute)
	n, _, err := s.Hit(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestMemoryStorage_Bounded(t *testing.T) {
	s, err := NewMemoryStorage(2)
	require.NoError(t, err)
	ctx := context.Background()

	_, _, _ = s.Hit(ctx, "a", time.Minute)
	_, _, _ = s.Hit(ctx, "b", time.Minute)
	_, _, _ = s.Hit(ctx, "c", time.Minute)
	require.Equal(t, 2, s.cache.Len())

	n, _, err := s.Hit(ctx, "a", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n, "evicted key starts a new window")
}

func TestRedisStorage_FixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisStorage(client, "test")
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, _, err := s.Hit(ctx, "ip", time.Minute)
		require.NoError(t, err)
		require.Equal(t, i, n)
	}
	require.Equal(t, time.Minute, mr.TTL("test:ip"))

	mr.FastForward(time.Minute + time.Second)
	n, _, err := s.Hit(ctx, "ip", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestRedisStorage_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, _, err := NewRedisStorage(client, "").Hit(context.Background(), "k", time.Minute)
	require.ErrorIs(t, err, ErrStorage)
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()

	s, err := OpenStorage(ctx, "", 0)
	require.NoError(t, err)
	require.IsType(t, &MemoryStorage{}, s)

	mr := miniredis.RunT(t)
	s, err = OpenStorage(ctx, "redis://"+mr.Addr()+"/0", 0)
	require.NoError(t, err)
	require.IsType(t, &RedisStorage{}, s)
	require.NoError(t, s.Close())

	_, err = OpenStorage(ctx, "memcached://x", 0)
	require.ErrorIs(t, err, ErrConfig)
}
