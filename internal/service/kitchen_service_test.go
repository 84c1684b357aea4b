package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/cafe-pos/internal/model"
	"github.com/d60-Lab/cafe-pos/pkg/errs"
)

func TestAdvanceStageOnlyToImmediateSuccessor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.openSession(t, terminalFront, cashierAlice)
	o := f.createOrder(t, session.ID, nil)

	_, err := f.kitchen.AdvanceStage(ctx, o.ID, model.KitchenStagePreparing)
	require.ErrorIs(t, err, ErrInvalidStageTransition, "draft orders are not in the kitchen")

	_, err = f.orders.SendToKitchen(ctx, o.ID)
	require.NoError(t, err)

	_, err = f.kitchen.AdvanceStage(ctx, o.ID, model.KitchenStageCompleted)
	assert.ErrorIs(t, err, ErrInvalidStageTransition, "skipping preparing")
	_, err = f.kitchen.AdvanceStage(ctx, o.ID, model.KitchenStageToCook)
	assert.ErrorIs(t, err, ErrInvalidStageTransition, "same stage")

	_, err = f.kitchen.AdvanceStage(ctx, o.ID, model.KitchenStage("plated"))
	require.ErrorIs(t, err, ErrInvalidStage)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	preparing, err := f.kitchen.AdvanceStage(ctx, o.ID, model.KitchenStagePreparing)
	require.NoError(t, err)
	assert.Equal(t, model.KitchenStagePreparing, preparing.KitchenStage)
	assert.Equal(t, model.OrderStatusPreparing, preparing.Status)

	completed, err := f.kitchen.AdvanceStage(ctx, o.ID, model.KitchenStageCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.KitchenStageCompleted, completed.KitchenStage)
	assert.Equal(t, model.OrderStatusPreparing, completed.Status, "kitchen completion does not close the order")

	_, err = f.kitchen.AdvanceStage(ctx, o.ID, model.KitchenStagePreparing)
	assert.ErrorIs(t, err, ErrInvalidStageTransition, "no regression")
}

func TestMarkLinePrepared(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.openSession(t, terminalFront, cashierAlice)
	o := f.createOrder(t, session.ID, nil)
	other := f.createOrder(t, session.ID, nil)

	_, err := f.kitchen.MarkLinePrepared(ctx, o.ID, o.Lines[0].ID)
	require.ErrorIs(t, err, ErrInvalidStageTransition)

	_, err = f.orders.SendToKitchen(ctx, o.ID)
	require.NoError(t, err)

	_, err = f.kitchen.MarkLinePrepared(ctx, o.ID, other.Lines[0].ID)
	require.ErrorIs(t, err, ErrLineNotFound, "line belongs to another order")
	_, err = f.kitchen.MarkLinePrepared(ctx, 9999, o.Lines[0].ID)
	require.ErrorIs(t, err, ErrOrderNotFound)

	first, err := f.kitchen.MarkLinePrepared(ctx, o.ID, o.Lines[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.KitchenStagePreparing, first.KitchenStage)
	assert.True(t, first.Lines[0].IsPrepared)
	assert.False(t, first.Lines[1].IsPrepared)

	again, err := f.kitchen.MarkLinePrepared(ctx, o.ID, o.Lines[0].ID)
	require.NoError(t, err)
	assert.Equal(t, first.Version, again.Version, "marking twice is a no-op")

	done, err := f.kitchen.MarkLinePrepared(ctx, o.ID, o.Lines[1].ID)
	require.NoError(t, err)
	assert.Equal(t, model.KitchenStageCompleted, done.KitchenStage)
}

func TestMarkLinePreparedNeverRegressesStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.openSession(t, terminalFront, cashierAlice)
	o := f.createOrder(t, session.ID, nil)
	_, err := f.orders.SendToKitchen(ctx, o.ID)
	require.NoError(t, err)
	_, err = f.kitchen.AdvanceStage(ctx, o.ID, model.KitchenStagePreparing)
	require.NoError(t, err)
	_, err = f.kitchen.AdvanceStage(ctx, o.ID, model.KitchenStageCompleted)
	require.NoError(t, err)

	got, err := f.kitchen.MarkLinePrepared(ctx, o.ID, o.Lines[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.KitchenStageCompleted, got.KitchenStage)
}

func TestConcurrentLineMarksComplete(t *testing.T) {
	f := newFixture(t, WithRetryAttempts(10))
	ctx := context.Background()
	session := f.openSession(t, terminalFront, cashierAlice)

	inputs := make([]LineInput, 8)
	for i := range inputs {
		inputs[i] = LineInput{ProductID: productLatte, Quantity: 1}
	}
	o, err := f.orders.CreateOrder(ctx, CreateOrderInput{SessionID: session.ID, Lines: inputs})
	require.NoError(t, err)
	_, err = f.orders.SendToKitchen(ctx, o.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errCh := make(chan error, len(o.Lines))
	for _, line := range o.Lines {
		wg.Add(1)
		go func(lineID int64) {
			defer wg.Done()
			_, err := f.kitchen.MarkLinePrepared(ctx, o.ID, lineID)
			errCh <- err
		}(line.ID)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	final, err := f.orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.KitchenStageCompleted, final.KitchenStage)
	assert.Equal(t, len(final.Lines), final.PreparedCount())
}

func TestKitchenQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.openSession(t, terminalFront, cashierAlice)

	draft := f.createOrder(t, session.ID, nil)
	older := f.createOrder(t, session.ID, nil)
	newer := f.createOrder(t, session.ID, nil)
	dropped := f.createOrder(t, session.ID, nil)
	for _, o := range []*model.Order{older, newer, dropped} {
		_, err := f.orders.SendToKitchen(ctx, o.ID)
		require.NoError(t, err)
	}
	_, err := f.kitchen.AdvanceStage(ctx, newer.ID, model.KitchenStagePreparing)
	require.NoError(t, err)
	_, err = f.orders.UpdateStatus(ctx, dropped.ID, model.OrderStatusCancelled)
	require.NoError(t, err)

	queue, err := f.kitchen.Queue(ctx, model.KitchenStageNone, 0)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, older.ID, queue[0].ID)
	assert.Equal(t, newer.ID, queue[1].ID)
	assert.NotEqual(t, draft.ID, queue[0].ID)
	assert.Len(t, queue[0].Lines, 2)

	preparing, err := f.kitchen.Queue(ctx, model.KitchenStagePreparing, 0)
	require.NoError(t, err)
	require.Len(t, preparing, 1)
	assert.Equal(t, newer.ID, preparing[0].ID)

	_, err = f.kitchen.Queue(ctx, model.KitchenStage("plated"), 0)
	assert.ErrorIs(t, err, ErrInvalidStage)
}

func TestKitchenStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.openSession(t, terminalFront, cashierAlice)

	f.createOrder(t, session.ID, nil)
	toCook := f.createOrder(t, session.ID, nil)
	cooking := f.createOrder(t, session.ID, nil)
	ready := f.createOrder(t, session.ID, nil)
	dropped := f.createOrder(t, session.ID, nil)
	served := f.createOrder(t, session.ID, nil)
	for _, o := range []*model.Order{toCook, cooking, ready, dropped, served} {
		_, err := f.orders.SendToKitchen(ctx, o.ID)
		require.NoError(t, err)
	}
	mark := func(o *model.Order, lines int) {
		for _, l := range o.Lines[:lines] {
			_, err := f.kitchen.MarkLinePrepared(ctx, o.ID, l.ID)
			require.NoError(t, err)
		}
	}
	mark(cooking, 1)
	mark(ready, 2)
	mark(served, 2)
	_, err := f.orders.UpdateStatus(ctx, dropped.ID, model.OrderStatusCancelled)
	require.NoError(t, err)
	_, err = f.payments.ProcessPayment(ctx, PaymentInput{OrderID: served.ID, Method: model.PaymentMethodDigital})
	require.NoError(t, err)

	stats, err := f.kitchen.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &KitchenStats{
		ToCook:        1,
		Preparing:     1,
		Completed:     1,
		PendingLines:  3,
		PreparedLines: 3,
	}, stats)
}
