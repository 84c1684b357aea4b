package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/cafe-pos/config"
	"github.com/d60-Lab/cafe-pos/internal/catalog"
	"github.com/d60-Lab/cafe-pos/internal/model"
	"github.com/d60-Lab/cafe-pos/internal/repository"
	"github.com/d60-Lab/cafe-pos/pkg/database"
)

const (
	terminalFront   int64 = 1
	terminalCashOff int64 = 2
	terminalBar     int64 = 3

	productLatte    int64 = 1
	productSandwich int64 = 2
	productRetired  int64 = 3
	productCookie   int64 = 4

	tableOne int64 = 1
	tableTwo int64 = 2

	cashierAlice int64 = 100
	cashierBob   int64 = 101
)

var fixtureSeq atomic.Int64

type fixture struct {
	db       *gorm.DB
	store    *repository.Store
	orders   OrderService
	kitchen  KitchenService
	payments PaymentService
	sessions SessionService
	now      time.Time
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), fixtureSeq.Add(1))
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: dsn, LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	require.NoError(t, db.Create(&[]model.Terminal{
		{ID: terminalFront, Name: "Front", CashEnabled: true, DigitalEnabled: true, UPIEnabled: true, UPIID: ptr("cafe@upi")},
		{ID: terminalCashOff, Name: "Kiosk", DigitalEnabled: true, UPIEnabled: true},
		{ID: terminalBar, Name: "Bar", CashEnabled: true, DigitalEnabled: true},
	}).Error)
	require.NoError(t, db.Create(&[]model.Product{
		{ID: productLatte, Name: "Latte", Price: dec("50"), TaxRate: dec("10"), IsActive: true},
		{ID: productSandwich, Name: "Club Sandwich", Price: dec("100"), TaxRate: dec("5"), IsActive: true},
		{ID: productRetired, Name: "Pumpkin Spice", Price: dec("60"), TaxRate: dec("10"), IsActive: false},
		{ID: productCookie, Name: "Cookie", Price: dec("3.35"), TaxRate: dec("7.5"), IsActive: true},
	}).Error)
	require.NoError(t, db.Create(&[]model.DiningTable{
		{ID: tableOne, Number: "T1", Seats: 4, Status: model.TableStatusAvailable},
		{ID: tableTwo, Number: "T2", Seats: 2, Status: model.TableStatusAvailable},
	}).Error)

	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)

	store := repository.NewStore(db)
	lookup := catalog.New(store.Products, store.Terminals, nil, time.Minute)
	return &fixture{
		db:       db,
		store:    store,
		orders:   NewOrderService(store, lookup, opts...),
		kitchen:  NewKitchenService(store, lookup, opts...),
		payments: NewPaymentService(store, lookup, opts...),
		sessions: NewSessionService(store, lookup, opts...),
		now:      now,
	}
}

func (f *fixture) openSession(t *testing.T, terminalID, userID int64) *model.PosSession {
	t.Helper()
	s, err := f.sessions.OpenSession(context.Background(), OpenSessionInput{TerminalID: terminalID, UserID: userID})
	require.NoError(t, err)
	return s
}

// createOrder 两行：2 × Latte(50, 10%) + 1 × Club Sandwich(100, 5%)，合计 215
func (f *fixture) createOrder(t *testing.T, sessionID int64, tableID *int64) *model.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(context.Background(), CreateOrderInput{
		SessionID: sessionID,
		TableID:   tableID,
		Lines: []LineInput{
			{ProductID: productLatte, Quantity: 2},
			{ProductID: productSandwich, Quantity: 1},
		},
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) table(t *testing.T, id int64) *model.DiningTable {
	t.Helper()
	tbl, err := f.store.Tables.GetByID(context.Background(), id)
	require.NoError(t, err)
	return tbl
}

func (f *fixture) countPayments(t *testing.T, orderID int64) int {
	t.Helper()
	records, err := f.store.Payments.ListByOrder(context.Background(), orderID)
	require.NoError(t, err)
	return len(records)
}

// assertTotalsMatchLines 独立地从订单行重新计算金额并与订单头比较
func assertTotalsMatchLines(t *testing.T, o *model.Order) {
	t.Helper()
	subtotal, total := decimal.Zero, decimal.Zero
	for _, l := range o.Lines {
		lineSubtotal := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
		tax := lineSubtotal.Mul(l.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
		require.True(t, lineSubtotal.Equal(l.Subtotal), "line %d subtotal %s != %s", l.ID, l.Subtotal, lineSubtotal)
		require.True(t, lineSubtotal.Add(tax).Equal(l.Total), "line %d total %s", l.ID, l.Total)
		subtotal = subtotal.Add(l.Subtotal)
		total = total.Add(l.Total)
	}
	require.True(t, subtotal.Equal(o.Subtotal), "subtotal %s != %s", o.Subtotal, subtotal)
	require.True(t, total.Equal(o.TotalAmount), "total %s != %s", o.TotalAmount, total)
	require.True(t, o.Subtotal.Add(o.TaxAmount).Equal(o.TotalAmount))
}
