package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facility-import/backend/internal/domain/entities"
	"github.com/zatekoja/facility-import/backend/internal/domain/providers"
	redisclient "github.com/zatekoja/facility-import/backend/internal/infrastructure/clients/redis"
)

func TestRedisEventBus_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, providers.EventChannelImports)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	bus := NewRedisEventBus(redisclient.NewClientFromRedis(client))
	event := entities.NewImportEvent(entities.ImportEventTypeImportCompleted, "province:Gauteng")
	event.Result = &entities.ImportResult{TotalFetched: 4, TotalInserted: 3, TotalSkipped: 1}
	require.NoError(t, bus.Publish(ctx, providers.EventChannelImports, event))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got entities.ImportEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, entities.ImportEventTypeImportCompleted, got.EventType)
	assert.Equal(t, "province:Gauteng", got.Scope)
	require.NotNil(t, got.Result)
	assert.Equal(t, 3, got.Result.TotalInserted)
}

func TestRedisEventBus_PublishWithoutSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	bus := NewRedisEventBus(redisclient.NewClientFromRedis(client))
	err := bus.Publish(context.Background(), providers.EventChannelImports,
		entities.NewImportEvent(entities.ImportEventTypeStoreCleared, "all"))
	assert.NoError(t, err)
}
