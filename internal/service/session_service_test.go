package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/cafe-pos/internal/model"
)

func TestOpenSessionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sessions.OpenSession(ctx, OpenSessionInput{UserID: cashierAlice})
	assert.ErrorIs(t, err, ErrTerminalRequired)
	_, err = f.sessions.OpenSession(ctx, OpenSessionInput{TerminalID: terminalFront})
	assert.ErrorIs(t, err, ErrUserRequired)
	_, err = f.sessions.OpenSession(ctx, OpenSessionInput{TerminalID: 99, UserID: cashierAlice})
	assert.ErrorIs(t, err, ErrTerminalNotFound)
	_, err = f.sessions.OpenSession(ctx, OpenSessionInput{TerminalID: terminalFront, UserID: cashierAlice, OpeningBalance: ptr(dec("-1"))})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	s, err := f.sessions.OpenSession(ctx, OpenSessionInput{TerminalID: terminalFront, UserID: cashierAlice, OpeningBalance: ptr(dec("100"))})
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusOpen, s.Status)
	assert.True(t, s.SaleAmount.IsZero())
	assert.True(t, dec("100").Equal(s.OpeningBalance))
	assert.Nil(t, s.CloseDate)
}

func TestConcurrentOpenSessionExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			_, err := f.sessions.OpenSession(ctx, OpenSessionInput{TerminalID: terminalFront, UserID: user})
			results <- err
		}(cashierAlice + int64(i))
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrSessionAlreadyOpen)
	}
	assert.Equal(t, 1, succeeded)

	open, err := f.sessions.ListSessions(ctx, SessionQuery{TerminalID: terminalFront, Status: model.SessionStatusOpen})
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestSessionScope(t *testing.T) {
	t.Run("terminal scope allows one cashier on two terminals", func(t *testing.T) {
		f := newFixture(t)
		f.openSession(t, terminalFront, cashierAlice)
		f.openSession(t, terminalBar, cashierAlice)
	})

	t.Run("user scope allows two cashiers on one terminal", func(t *testing.T) {
		f := newFixture(t, WithSessionScope("user"))
		ctx := context.Background()
		f.openSession(t, terminalFront, cashierAlice)
		f.openSession(t, terminalFront, cashierBob)

		_, err := f.sessions.OpenSession(ctx, OpenSessionInput{TerminalID: terminalBar, UserID: cashierAlice})
		assert.ErrorIs(t, err, ErrSessionAlreadyOpen)
	})

	t.Run("both scopes", func(t *testing.T) {
		f := newFixture(t, WithSessionScope("both"))
		ctx := context.Background()
		f.openSession(t, terminalFront, cashierAlice)

		_, err := f.sessions.OpenSession(ctx, OpenSessionInput{TerminalID: terminalBar, UserID: cashierAlice})
		assert.ErrorIs(t, err, ErrSessionAlreadyOpen)
		_, err = f.sessions.OpenSession(ctx, OpenSessionInput{TerminalID: terminalFront, UserID: cashierBob})
		assert.ErrorIs(t, err, ErrSessionAlreadyOpen)
	})
}

func TestCloseSessionReconciles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session, err := f.sessions.OpenSession(ctx, OpenSessionInput{TerminalID: terminalFront, UserID: cashierAlice, OpeningBalance: ptr(dec("50"))})
	require.NoError(t, err)

	cash := f.createOrder(t, session.ID, nil)
	split := f.createOrder(t, session.ID, nil)
	partial := f.createOrder(t, session.ID, nil)
	f.createOrder(t, session.ID, nil)

	pay := func(orderID int64, method model.PaymentMethod, amount *decimal.Decimal) {
		_, err := f.payments.ProcessPayment(ctx, PaymentInput{OrderID: orderID, Method: method, Amount: amount})
		require.NoError(t, err)
	}
	pay(cash.ID, model.PaymentMethodCash, nil)
	pay(split.ID, model.PaymentMethodUPI, ptr(dec("200")))
	pay(split.ID, model.PaymentMethodCash, nil)
	pay(partial.ID, model.PaymentMethodDigital, ptr(dec("20")))

	report, err := f.sessions.CloseSession(ctx, session.ID, ptr(dec("275")))
	require.NoError(t, err)
	summary := report.Summary

	assert.Equal(t, 4, summary.TotalOrders)
	assert.Equal(t, 2, summary.UnpaidOrders)
	assert.True(t, dec("430").Equal(summary.TotalSales), summary.TotalSales.String())

	byMethod := decimal.Zero
	for _, ms := range summary.SalesByPaymentMethod {
		byMethod = byMethod.Add(ms.Sales)
	}
	assert.True(t, summary.TotalSales.Equal(byMethod), "method breakdown sums to total sales")

	assert.True(t, dec("230").Equal(summary.SalesByPaymentMethod[model.PaymentMethodCash].Sales))
	assert.Equal(t, 2, summary.SalesByPaymentMethod[model.PaymentMethodCash].Orders)
	assert.True(t, dec("200").Equal(summary.SalesByPaymentMethod[model.PaymentMethodUPI].Sales))
	assert.Equal(t, 1, summary.SalesByPaymentMethod[model.PaymentMethodUPI].Orders)
	assert.True(t, summary.SalesByPaymentMethod[model.PaymentMethodDigital].Sales.IsZero(), "partial order is not a sale yet")

	closed := report.Session
	assert.True(t, dec("430").Equal(closed.SaleAmount))
	require.NotNil(t, closed.ExpectedCash)
	assert.True(t, dec("280").Equal(*closed.ExpectedCash), closed.ExpectedCash.String())
	require.NotNil(t, closed.CashDifference)
	assert.True(t, dec("-5").Equal(*closed.CashDifference), closed.CashDifference.String())

	stored, err := f.sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusClosed, stored.Session.Status)
	assert.True(t, dec("430").Equal(stored.Session.SaleAmount))
}

func TestCloseSessionErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sessions.CloseSession(ctx, 404, nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	session := f.openSession(t, terminalFront, cashierAlice)
	_, err = f.sessions.CloseSession(ctx, session.ID, nil)
	require.NoError(t, err)

	_, err = f.sessions.CloseSession(ctx, session.ID, nil)
	assert.ErrorIs(t, err, ErrAlreadyClosed)

	reopened := f.openSession(t, terminalFront, cashierAlice)
	assert.NotEqual(t, session.ID, reopened.ID, "closing frees the terminal")
}

func TestGetAndCurrentSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sessions.CurrentSession(ctx, terminalFront)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	session := f.openSession(t, terminalFront, cashierAlice)
	o := f.createOrder(t, session.ID, nil)
	_, err = f.payments.ProcessPayment(ctx, PaymentInput{OrderID: o.ID, Method: model.PaymentMethodDigital})
	require.NoError(t, err)
	f.createOrder(t, session.ID, nil)

	current, err := f.sessions.CurrentSession(ctx, terminalFront)
	require.NoError(t, err)
	assert.Equal(t, session.ID, current.ID)

	live, err := f.sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, live.Summary.TotalOrders)
	assert.Equal(t, 1, live.Summary.UnpaidOrders)
	assert.True(t, dec("215").Equal(live.Summary.TotalSales))
	assert.True(t, live.Session.SaleAmount.IsZero(), "sale_amount is only written at close")

	_, err = f.sessions.GetSession(ctx, 404)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDrawerCashCountsPartialPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session, err := f.sessions.OpenSession(ctx, OpenSessionInput{TerminalID: terminalFront, UserID: cashierAlice, OpeningBalance: ptr(dec("50"))})
	require.NoError(t, err)

	partial := f.createOrder(t, session.ID, nil)
	_, err = f.payments.ProcessPayment(ctx, PaymentInput{OrderID: partial.ID, Method: model.PaymentMethodCash, Amount: ptr(dec("100"))})
	require.NoError(t, err)

	report, err := f.sessions.CloseSession(ctx, session.ID, ptr(dec("150")))
	require.NoError(t, err)

	assert.True(t, report.Summary.TotalSales.IsZero(), "unsettled order is not a sale")
	assert.Equal(t, 0, report.Summary.SalesByPaymentMethod[model.PaymentMethodCash].Orders)
	assert.Equal(t, 1, report.Summary.UnpaidOrders)
	require.NotNil(t, report.Session.ExpectedCash)
	assert.True(t, dec("150").Equal(*report.Session.ExpectedCash), report.Session.ExpectedCash.String())
	require.NotNil(t, report.Session.CashDifference)
	assert.True(t, report.Session.CashDifference.IsZero(), report.Session.CashDifference.String())
}

func TestSummaryCountsCancelledSeparately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.openSession(t, terminalFront, cashierAlice)

	paid := f.createOrder(t, session.ID, nil)
	f.createOrder(t, session.ID, nil)
	cancelled := f.createOrder(t, session.ID, nil)
	_, err := f.payments.ProcessPayment(ctx, PaymentInput{OrderID: paid.ID, Method: model.PaymentMethodDigital})
	require.NoError(t, err)
	_, err = f.orders.UpdateStatus(ctx, cancelled.ID, model.OrderStatusCancelled)
	require.NoError(t, err)

	report, err := f.sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Summary.TotalOrders)
	assert.Equal(t, 1, report.Summary.UnpaidOrders)
	assert.Equal(t, 1, report.Summary.CancelledOrders)
	assert.True(t, dec("215").Equal(report.Summary.TotalSales), report.Summary.TotalSales.String())
}
