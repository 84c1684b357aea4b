package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/cafe-pos/internal/model"
	"github.com/d60-Lab/cafe-pos/pkg/broker"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []broker.Event
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, ev broker.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

func TestRelayPublishesCommittedEventsInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.openSession(t, terminalFront, cashierAlice)
	o := f.createOrder(t, session.ID, nil)
	_, err := f.payments.ProcessPayment(ctx, PaymentInput{OrderID: o.ID, Method: model.PaymentMethodCash})
	require.NoError(t, err)

	pub := &recordingPublisher{}
	relay := NewOutboxRelay(f.store.Outbox, pub, 1, 100, time.Millisecond)
	n, err := relay.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []string{
		model.EventSessionOpened,
		model.EventOrderCreated,
		model.EventPaymentProcessed,
		model.EventOrderPaid,
	}, pub.types())

	var payload map[string]any
	require.NoError(t, json.Unmarshal(pub.events[1].Payload, &payload))
	assert.Equal(t, "215.00", payload["total_amount"])

	n, err = relay.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "published events are not sent again")
}

func TestRelayRequeuesOnPublishFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.openSession(t, terminalFront, cashierAlice)

	pub := &recordingPublisher{fail: true}
	relay := NewOutboxRelay(f.store.Outbox, pub, 1, 100, time.Millisecond)
	n, err := relay.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	pub.fail = false
	n, err = relay.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{model.EventSessionOpened}, pub.types())
}

func TestRelayRunDeliversToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := rdb.Subscribe(ctx, "pos:events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	relay := NewOutboxRelay(f.store.Outbox, broker.NewRedisPublisher(rdb, "pos:events"), 2, 10, 5*time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	session := f.openSession(t, terminalFront, cashierAlice)

	select {
	case msg := <-sub.Channel():
		var ev broker.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, model.EventSessionOpened, ev.Type)
		assert.Equal(t, session.ID, ev.AggregateID)
	case <-time.After(3 * time.Second):
		t.Fatal("event was not relayed")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("relay did not stop")
	}
}
