package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/odata-batch-proxy/clients/cache"
)

func TestUnitTestInMemoryCacheSetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := cache.NewInMemoryCache()

	_, err := c.Get(ctx, "query:odata:missing")
	require.ErrorIs(t, err, cache.ErrNotFound)

	value := []byte(`{"status":200}`)
	require.NoError(t, c.Set(ctx, "query:odata:key", value, time.Minute))

	// the cache keeps its own copy
	value[0] = 'X'

	got, err := c.Get(ctx, "query:odata:key")
	require.NoError(t, err)
	require.Equal(t, []byte(`{"status":200}`), got)

	require.NoError(t, c.Delete(ctx, "query:odata:key"))
	_, err = c.Get(ctx, "query:odata:key")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestUnitTestInMemoryCacheExpiration(t *testing.T) {
	ctx := context.Background()
	c := cache.NewInMemoryCache()

	require.NoError(t, c.Set(ctx, "expired", []byte("a"), -time.Second))
	_, err := c.Get(ctx, "expired")
	require.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, c.Set(ctx, "forever", []byte("b"), cache.NoExpiration))
	got, err := c.Get(ctx, "forever")
	require.NoError(t, err)
	require.Equal(t, []byte("b"), got)
}

func TestUnitTestInMemoryCacheHealthcheck(t *testing.T) {
	c := cache.NewInMemoryCache()
	require.NoError(t, c.Healthcheck(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, c.Healthcheck(ctx), context.Canceled)
}

func TestUnitTestRedisCacheHealthcheckUnreachable(t *testing.T) {
	c, err := cache.NewRedisCache(&cache.RedisConfig{Address: "127.0.0.1:1"}, nil)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.Error(t, c.Healthcheck(ctx))
}

func TestUnitTestInMemoryCacheGetMany(t *testing.T) {
	ctx := context.Background()
	c := cache.NewInMemoryCache()

	require.NoError(t, c.Set(ctx, "query:odata:a", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "query:odata:b", []byte("b"), cache.NoExpiration))
	require.NoError(t, c.Set(ctx, "query:odata:expired", []byte("x"), -time.Second))

	values, err := c.GetMany(ctx, []string{"query:odata:a", "query:odata:b", "query:odata:expired", "query:odata:missing"})
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{
		"query:odata:a": []byte("a"),
		"query:odata:b": []byte("b"),
	}, values)

	values, err = c.GetMany(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestUnitTestRedisCacheGetManyUnreachable(t *testing.T) {
	c, err := cache.NewRedisCache(&cache.RedisConfig{Address: "127.0.0.1:1"}, nil)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// no keys means no round trip
	values, err := c.GetMany(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, values)

	_, err = c.GetMany(ctx, []string{"query:odata:a"})
	require.Error(t, err)
}
