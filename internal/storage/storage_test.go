package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisBackendRoundTrip(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	local := NewRedisBackend(client, time.Hour).For("v-1")

	_, ok, err := local.Get(ctx, "draft")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, local.Set(ctx, "draft", `{"a":1}`))
	assert.True(t, mr.Exists("visitor:v-1:draft"))
	assert.Equal(t, time.Hour, mr.TTL("visitor:v-1:draft"))

	val, ok, err := local.Get(ctx, "draft")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, val)

	require.NoError(t, local.Remove(ctx, "draft"))
	_, ok, err = local.Get(ctx, "draft")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisBackendIsolatesVisitors(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	backend := NewRedisBackend(client, 0)

	require.NoError(t, backend.For("a").Set(ctx, "k", "from-a"))
	_, ok, err := backend.For("b").Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisBackendSurfacesErrors(t *testing.T) {
	mr, client := setupTestRedis(t)
	mr.Close()
	_, _, err := NewRedisBackend(client, 0).For("a").Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	a := backend.For("a")

	require.NoError(t, a.Set(ctx, "k", "v1"))
	require.NoError(t, a.Set(ctx, "k", "v2"))
	val, ok, err := backend.For("a").Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", val)

	_, ok, _ = backend.For("b").Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, a.Remove(ctx, "k"))
	require.NoError(t, backend.For("never-seen").Remove(ctx, "k"))
	_, ok, _ = a.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryBackendDropsEmptyVisitors(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	a := backend.For("a")

	require.NoError(t, a.Set(ctx, "chauffeur_booking_draft", "{}"))
	require.NoError(t, a.Set(ctx, "sb-test-auth-token", "{}"))
	require.NoError(t, backend.For("b").Set(ctx, "k", "v"))
	assert.Equal(t, 2, backend.Visitors())

	require.NoError(t, a.Remove(ctx, "chauffeur_booking_draft"))
	assert.Equal(t, 2, backend.Visitors(), "a still holds its session slot")
	require.NoError(t, a.Remove(ctx, "sb-test-auth-token"))
	assert.Equal(t, 1, backend.Visitors())

	require.NoError(t, a.Set(ctx, "k", "again"))
	val, ok, err := a.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "again", val)
}
