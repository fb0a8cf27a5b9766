package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*IdempotencyCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	return NewIdempotencyCache(client), s
}

func TestIdempotencyCache_SetAndGet(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	key := "WTX_1700000000000_AB12CD34EF"
	value := []byte(`{"id":"entry-1","status":"completed","amount":100}`)

	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result, "miss before set")

	require.NoError(t, cache.Set(ctx, key, value, 24*time.Hour))

	result, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, result)
}

func TestIdempotencyCache_TTLExpiry(t *testing.T) {
	cache, s := newTestCache(t)
	ctx := context.Background()

	key := "WTX_1700000000001_FFEEDDCCBB"
	require.NoError(t, cache.Set(ctx, key, []byte(`{"amount":50}`), time.Second))

	s.FastForward(2 * time.Second)

	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result, "expired key should return nil")
}

func TestIdempotencyCache_KeysAreNamespaced(t *testing.T) {
	cache, s := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "WTX_1_A", []byte("x"), time.Hour))
	assert.True(t, s.Exists("ledger:idem:WTX_1_A"))
}
