package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/cafe-pos/config"
)

func TestRedisPublisherDeliversEnvelope(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, "pos:events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub, err := New(config.BrokerConfig{Driver: "redis", Channel: "pos:events"}, rdb)
	require.NoError(t, err)

	ev := Event{
		ID:          "evt-1",
		Type:        "order.paid",
		Aggregate:   "order",
		AggregateID: 42,
		Payload:     json.RawMessage(`{"order_id":42}`),
		OccurredAt:  time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, pub.Publish(ctx, ev))

	select {
	case msg := <-sub.Channel():
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, ev.ID, got.ID)
		assert.Equal(t, ev.Type, got.Type)
		assert.Equal(t, int64(42), got.AggregateID)
		assert.JSONEq(t, `{"order_id":42}`, string(got.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(config.BrokerConfig{Driver: "kafka"}, nil)
	assert.Error(t, err)

	_, err = New(config.BrokerConfig{Driver: "redis"}, nil)
	assert.Error(t, err)

	pub, err := New(config.BrokerConfig{Driver: "none"}, nil)
	require.NoError(t, err)
	assert.NoError(t, pub.Publish(context.Background(), Event{ID: "x"}))
}
