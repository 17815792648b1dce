package cache_test

import (
	"context"
	"testing"
	"time"

	"crosspost/domain/model"
	"crosspost/infrastructure/cache"
	"crosspost/infrastructure/configuration"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyStore_LocalOnly(t *testing.T) {
	s := cache.NewIdempotencyStore(nil, time.Minute)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "u1", "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	report := &model.PublishReport{ID: "r1", UserID: "u1"}
	require.NoError(t, s.Put(ctx, "u1", "k1", report))

	got, ok, err := s.Get(ctx, "u1", "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r1", got.ID)

	_, ok, _ = s.Get(ctx, "u2", "k1")
	assert.False(t, ok, "keys are scoped per user")
}

func TestIdempotencyStore_FallsBackWhenRedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	s := cache.NewIdempotencyStore(client, time.Minute)
	ctx := context.Background()

	assert.Error(t, s.Put(ctx, "u1", "k1", &model.PublishReport{ID: "r1"}))

	got, ok, err := s.Get(ctx, "u1", "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r1", got.ID)
}

func TestNewCache_RequiresHost(t *testing.T) {
	_, err := cache.NewCache(context.Background(), configuration.RedisClient{})
	assert.Error(t, err)
}
