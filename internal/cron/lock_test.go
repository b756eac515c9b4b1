package cron

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/scanmarket-backend/pkg/redis"
)

func TestRedisLockIsExclusiveAndOwnerScoped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	first, err := NewRedisLock(client, "sm:maintenance:lock:test", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(client, "sm:maintenance:lock:test", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("sm:maintenance:lock:test"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// a release from a non-owner leaves the key alone
	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists("sm:maintenance:lock:test"))

	require.NoError(t, first.Release(ctx))
	assert.False(t, mr.Exists("sm:maintenance:lock:test"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// the key expired and was taken over; the stale owner must not delete it
	mr.FastForward(time.Minute)
	ok, err = first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists("sm:maintenance:lock:test"))
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", 0)
	require.Error(t, err)
}
