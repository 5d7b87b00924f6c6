package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real server when REDIS_TEST_ADDR is set.
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	r, err := NewRedis(ctx, RedisOptions{Addr: addr, Prefix: "storyline-test:"})
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Put(ctx, "k", []byte("v"), time.Minute))
	e, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(e.Value))
	assert.WithinDuration(t, time.Now().Add(time.Minute), e.ExpiresAt, 5*time.Second)

	require.NoError(t, r.Delete(ctx, "k"))
	_, ok, err = r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := NewRedis(ctx, RedisOptions{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
