package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderStatusDraft, OrderStatusSentToKitchen, true},
		{OrderStatusDraft, OrderStatusCancelled, true},
		{OrderStatusDraft, OrderStatusPreparing, false},
		{OrderStatusDraft, OrderStatusCompleted, false},
		{OrderStatusSentToKitchen, OrderStatusPreparing, true},
		{OrderStatusSentToKitchen, OrderStatusCancelled, true},
		{OrderStatusSentToKitchen, OrderStatusDraft, false},
		{OrderStatusPreparing, OrderStatusCompleted, true},
		{OrderStatusPreparing, OrderStatusCancelled, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusDraft, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
	assert.True(t, OrderStatusCompleted.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusPreparing.IsTerminal())
}

func TestKitchenStageNext(t *testing.T) {
	next, ok := KitchenStageToCook.Next()
	assert.True(t, ok)
	assert.Equal(t, KitchenStagePreparing, next)

	next, ok = KitchenStagePreparing.Next()
	assert.True(t, ok)
	assert.Equal(t, KitchenStageCompleted, next)

	_, ok = KitchenStageCompleted.Next()
	assert.False(t, ok)
	_, ok = KitchenStageNone.Next()
	assert.False(t, ok)

	assert.False(t, KitchenStageNone.Valid())
	assert.False(t, KitchenStage("burnt").Valid())
	assert.True(t, KitchenStagePreparing.Valid())
}

func TestDeriveKitchenStageNeverRegresses(t *testing.T) {
	cases := []struct {
		current         KitchenStage
		prepared, total int
		want            KitchenStage
	}{
		{KitchenStageToCook, 0, 2, KitchenStageToCook},
		{KitchenStageToCook, 1, 2, KitchenStagePreparing},
		{KitchenStageToCook, 2, 2, KitchenStageCompleted},
		{KitchenStagePreparing, 0, 2, KitchenStagePreparing},
		{KitchenStageCompleted, 1, 2, KitchenStageCompleted},
		{KitchenStagePreparing, 2, 2, KitchenStageCompleted},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeriveKitchenStage(tc.current, tc.prepared, tc.total), "%s %d/%d", tc.current, tc.prepared, tc.total)
	}
}

func TestDerivePaymentStatus(t *testing.T) {
	total := decimal.NewFromInt(215)
	assert.Equal(t, PaymentStatusUnpaid, DerivePaymentStatus(decimal.Zero, total))
	assert.Equal(t, PaymentStatusPartial, DerivePaymentStatus(decimal.NewFromInt(100), total))
	assert.Equal(t, PaymentStatusPaid, DerivePaymentStatus(total, total))
}

func TestOrderLineAndTotals(t *testing.T) {
	coffee := Product{ID: 1, Name: "Latte", Price: decimal.NewFromInt(50), TaxRate: decimal.NewFromInt(10)}
	cake := Product{ID: 2, Name: "Cheesecake", Price: decimal.NewFromInt(100), TaxRate: decimal.NewFromInt(5)}

	o := &Order{Lines: []OrderLine{NewOrderLine(coffee, 2), NewOrderLine(cake, 1)}}
	o.RecomputeTotals()

	assert.True(t, decimal.NewFromInt(110).Equal(o.Lines[0].Total))
	assert.True(t, decimal.NewFromInt(200).Equal(o.Subtotal), o.Subtotal.String())
	assert.True(t, decimal.NewFromInt(15).Equal(o.TaxAmount), o.TaxAmount.String())
	assert.True(t, decimal.NewFromInt(215).Equal(o.TotalAmount), o.TotalAmount.String())
	assert.True(t, o.TotalAmount.Equal(o.Subtotal.Add(o.TaxAmount)))
}

func TestOrderLineRoundsTaxPerLine(t *testing.T) {
	p := Product{Price: decimal.RequireFromString("3.35"), TaxRate: decimal.RequireFromString("7.5")}
	l := NewOrderLine(p, 3)

	assert.Equal(t, "10.05", l.Subtotal.StringFixed(2))
	assert.Equal(t, "0.75", l.Tax().StringFixed(2))
	assert.Equal(t, "10.80", l.Total.StringFixed(2))
}
