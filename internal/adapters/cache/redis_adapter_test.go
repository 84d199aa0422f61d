package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/zatekoja/facility-import/backend/internal/infrastructure/clients/redis"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, &RedisAdapter{client: redisclient.NewClientFromRedis(client)}
}

func TestRedisAdapter_SetGetDelete(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, "facility-import:summary", []byte(`{"total_auto_imported":3}`), 300))

	got, err := adapter.Get(ctx, "facility-import:summary")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_auto_imported":3}`, string(got))
	assert.Equal(t, 300*time.Second, mr.TTL("facility-import:summary"))

	require.NoError(t, adapter.Delete(ctx, "facility-import:summary"))
	_, err = adapter.Get(ctx, "facility-import:summary")
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestRedisAdapter_Expiry(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, "k", []byte("v"), 60))
	mr.FastForward(61 * time.Second)

	_, err := adapter.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestRedisAdapter_SetNX(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	ctx := context.Background()

	stored, err := adapter.SetNX(ctx, "import:run-lock", []byte("run-1"), 7200)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = adapter.SetNX(ctx, "import:run-lock", []byte("run-2"), 7200)
	require.NoError(t, err)
	assert.False(t, stored)

	value, err := mr.Get("import:run-lock")
	require.NoError(t, err)
	assert.Equal(t, "run-1", value)

	mr.FastForward(7201 * time.Second)
	stored, err = adapter.SetNX(ctx, "import:run-lock", []byte("run-3"), 7200)
	require.NoError(t, err)
	assert.True(t, stored)
}
