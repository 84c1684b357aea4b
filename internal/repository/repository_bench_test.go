package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/d60-Lab/cafe-pos/internal/model"
)

func benchOrder(number string, sessionID int64) *model.Order {
	latte := model.Product{ID: 1, Name: "Latte", Price: decimal.NewFromInt(50), TaxRate: decimal.NewFromInt(10)}
	cookie := model.Product{ID: 2, Name: "Cookie", Price: decimal.RequireFromString("3.35"), TaxRate: decimal.RequireFromString("7.5")}
	o := &model.Order{
		OrderNumber:   number,
		SessionID:     sessionID,
		Status:        model.OrderStatusDraft,
		PaymentStatus: model.PaymentStatusUnpaid,
		Lines:         []model.OrderLine{model.NewOrderLine(latte, 2), model.NewOrderLine(cookie, 3)},
	}
	o.RecomputeTotals()
	return o
}

func BenchmarkNextOrderNumber(b *testing.B) {
	repos := NewRepos(setupTestDB(b))
	ctx := context.Background()
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := repos.Orders.NextOrderNumber(ctx, at); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCreateOrderWithLines(b *testing.B) {
	repos := NewRepos(setupTestDB(b))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := repos.Orders.Create(ctx, benchOrder(fmt.Sprintf("B-%08d", i), 1)); err != nil {
			b.Fatal(err)
		}
	}
}

// 一个会话 2000 单，其中一半已付款，测关班时的读取路径
func BenchmarkListBySessionAndPayments(b *testing.B) {
	repos := NewRepos(setupTestDB(b))
	ctx := context.Background()

	const n = 2000
	for i := 0; i < n; i++ {
		o := benchOrder(fmt.Sprintf("S-%05d", i), 7)
		if err := repos.Orders.Create(ctx, o); err != nil {
			b.Fatal(err)
		}
		if i%2 == 0 {
			continue
		}
		rec := &model.PaymentRecord{OrderID: o.ID, SessionID: 7, Method: model.PaymentMethodCash, Amount: o.TotalAmount}
		if err := repos.Payments.Create(ctx, rec); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		orders, err := repos.Orders.ListBySession(ctx, 7)
		if err != nil {
			b.Fatal(err)
		}
		if len(orders) != n {
			b.Fatalf("got %d orders", len(orders))
		}
		if _, err := repos.Payments.ListBySession(ctx, 7); err != nil {
			b.Fatal(err)
		}
	}
}
