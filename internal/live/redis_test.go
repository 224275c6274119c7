package live

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)

	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	return rdb
}

func TestRedisBridge_RelaysBetweenInstances(t *testing.T) {
	rdb := newTestRedis(t)
	channel := "teamtask:test:" + uuid.NewString()
	ctx := context.Background()

	hubA, hubB := NewHub(), NewHub()
	t.Cleanup(hubA.Close)
	t.Cleanup(hubB.Close)

	bridgeA := NewRedisBridge(rdb, hubA, channel)
	bridgeB := NewRedisBridge(rdb, hubB, channel)
	require.NoError(t, bridgeA.Start(ctx))
	require.NoError(t, bridgeB.Start(ctx))
	t.Cleanup(func() { _ = bridgeA.Close() })
	t.Cleanup(func() { _ = bridgeB.Close() })

	local, err := hubA.Subscribe("member-b")
	require.NoError(t, err)
	remote, err := hubB.Subscribe("member-b")
	require.NoError(t, err)

	bridgeA.Publish("member-b", SignalNotificationsChanged)

	assert.Equal(t, SignalNotificationsChanged, receive(t, local))
	assert.Equal(t, SignalNotificationsChanged, receive(t, remote))

	// The origin instance ignores its own echo from Redis.
	assertNoSignal(t, local)
}

func TestRedisBridge_PublishAfterCloseIsNoop(t *testing.T) {
	rdb := newTestRedis(t)
	hub := NewHub()
	t.Cleanup(hub.Close)

	bridge := NewRedisBridge(rdb, hub, "teamtask:test:"+uuid.NewString())
	require.NoError(t, bridge.Start(context.Background()))
	require.NoError(t, bridge.Close())
	require.NoError(t, bridge.Close())

	assert.NotPanics(t, func() {
		bridge.Publish("member-a", SignalNotificationsChanged)
	})
	assert.ErrorIs(t, bridge.Start(context.Background()), ErrBridgeClosed)
}
