package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ctr.Terminate(context.Background())
	})

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestGameChannel(t *testing.T) {
	assert.Equal(t, "channel:game:abc", GameChannel("abc"))
}

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent(GameUpdated, map[string]int{"index": 4})
	require.NoError(t, err)

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"game_updated","payload":{"index":4}}`, string(data))

	_, err = NewEvent(GameUpdated, make(chan int))
	assert.Error(t, err)
}

func TestPublishSubscribe(t *testing.T) {
	rdb := newTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sub, err := NewRedisSubscriber(rdb).Subscribe(ctx, "g-1")
	require.NoError(t, err)
	defer sub.Close()

	other, err := NewRedisSubscriber(rdb).Subscribe(ctx, "g-2")
	require.NoError(t, err)
	defer other.Close()

	ev, err := NewEvent(GameFinished, map[string]string{"winner": "X"})
	require.NoError(t, err)
	require.NoError(t, NewRedisPublisher(rdb).Publish(ctx, "g-1", ev))

	select {
	case data := <-sub.Messages():
		var got Event
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, GameFinished, got.Type)
		assert.JSONEq(t, `{"winner":"X"}`, string(got.Payload))
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}

	select {
	case data := <-other.Messages():
		t.Fatalf("unexpected event on other game: %s", data)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSubscriptionClose(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	sub, err := NewRedisSubscriber(rdb).Subscribe(ctx, "g-1")
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close(), "closing twice is a no-op")

	select {
	case _, ok := <-sub.Messages():
		assert.False(t, ok, "messages channel should close")
	case <-time.After(5 * time.Second):
		t.Fatal("messages channel was not closed")
	}
}
