package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSetDel(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	_, ok, err := c.Get(ctx, "fares:target_date:1:latest")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "fares:target_date:1:latest", []byte("v"), time.Minute))

	b, ok, err := c.Get(ctx, "fares:target_date:1:latest")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), b)

	require.NoError(t, c.Del(ctx, "fares:target_date:1:latest", "missing"))
	_, ok, err = c.Get(ctx, "fares:target_date:1:latest")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Del(ctx))
}

func TestRedisCache_TTLExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_ErrorWhenDown(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	require.Error(t, err)
}

func TestRateLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "rl:flights:mock:202604180800", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, "rl:flights:mock:202604180800", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "rl:flights:mock:202604180800", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)

	mr.FastForward(2 * time.Minute)
	ok, n, _ = rl.Allow(ctx, "rl:flights:mock:202604180800", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
}
