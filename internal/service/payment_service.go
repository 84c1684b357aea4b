package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/d60-Lab/cafe-pos/internal/catalog"
	"github.com/d60-Lab/cafe-pos/internal/model"
	"github.com/d60-Lab/cafe-pos/internal/repository"
	"github.com/d60-Lab/cafe-pos/pkg/logger"
)

// PaymentInput 收款参数。Amount 为空表示一次性结清余额；
// AmountReceived 仅用于现金，记录实收并计算找零。
type PaymentInput struct {
	OrderID        int64
	Method         model.PaymentMethod
	Amount         *decimal.Decimal
	AmountReceived *decimal.Decimal
}

// PaymentResult 收款结果
type PaymentResult struct {
	Order   *model.Order         `json:"order"`
	Payment *model.PaymentRecord `json:"payment"`
}

// MethodOption 终端可用的支付方式
type MethodOption struct {
	Method model.PaymentMethod `json:"method"`
	UPIID  *string             `json:"upi_id,omitempty"`
}

// PaymentService 收款结算
type PaymentService interface {
	ProcessPayment(ctx context.Context, in PaymentInput) (*PaymentResult, error)
	PaymentMethods(ctx context.Context, terminalID int64) ([]MethodOption, error)
}

type paymentService struct {
	engine
}

func NewPaymentService(store *repository.Store, lookup catalog.Lookup, opts ...Option) PaymentService {
	return &paymentService{engine: newEngine(store, lookup, opts)}
}

func validAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Round(2))
}

func (s *paymentService) ProcessPayment(ctx context.Context, in PaymentInput) (res *PaymentResult, err error) {
	ctx, end := startSpan(ctx, "PaymentService.ProcessPayment",
		attribute.Int64("order.id", in.OrderID),
		attribute.String("payment.method", string(in.Method)),
	)
	defer func() { end(err) }()

	if !in.Method.Valid() {
		return nil, ErrInvalidMethod.WithDetail("payment method %q is not one of cash, digital, upi", in.Method)
	}
	if in.Amount != nil && !validAmount(*in.Amount) {
		return nil, ErrInvalidAmount.WithDetail("amount %s must be positive with at most two decimals", in.Amount.String())
	}
	if in.AmountReceived != nil {
		if in.Method != model.PaymentMethodCash {
			return nil, ErrInvalidAmount.WithDetail("amount_received only applies to cash payments")
		}
		if !validAmount(*in.AmountReceived) {
			return nil, ErrInvalidAmount.WithDetail("amount_received %s must be positive with at most two decimals", in.AmountReceived.String())
		}
	}

	var payment *model.PaymentRecord
	order, err := s.withOrder(ctx, in.OrderID, func(tx *repository.Repos, o *model.Order) error {
		if o.PaymentStatus == model.PaymentStatusPaid {
			return ErrAlreadyPaid.WithDetail("order %s is already paid", o.OrderNumber)
		}
		if o.Status == model.OrderStatusCancelled {
			return ErrOrderClosed.WithDetail("order %s is cancelled", o.OrderNumber)
		}
		if err := s.checkMethod(ctx, tx, o, in.Method); err != nil {
			return err
		}

		balance := o.Balance()
		amount := balance
		if in.Amount != nil {
			amount = *in.Amount
			if amount.GreaterThan(balance) {
				return ErrOverpayment.WithDetail("amount %s exceeds outstanding balance %s of order %s",
					amount.StringFixed(2), balance.StringFixed(2), o.OrderNumber)
			}
		}

		p := &model.PaymentRecord{
			OrderID:      o.ID,
			SessionID:    o.SessionID,
			Method:       in.Method,
			Amount:       amount,
			ChangeAmount: decimal.Zero,
			CreatedAt:    s.now(),
		}
		if in.AmountReceived != nil {
			if in.AmountReceived.LessThan(amount) {
				return ErrInsufficientTender.WithDetail("amount_received %s is less than amount %s",
					in.AmountReceived.StringFixed(2), amount.StringFixed(2))
			}
			received := *in.AmountReceived
			p.AmountReceived = &received
			p.ChangeAmount = received.Sub(amount)
		}
		if err := tx.Payments.Create(ctx, p); err != nil {
			return err
		}

		// 已付金额从支付记录重新汇总
		records, err := tx.Payments.ListByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		paid := decimal.Zero
		for _, r := range records {
			paid = paid.Add(r.Amount)
		}
		o.Payments = records
		o.PaidAmount = paid
		o.PaymentStatus = model.DerivePaymentStatus(paid, o.TotalAmount)

		if o.PaymentStatus == model.PaymentStatusPaid {
			o.Status = model.OrderStatusCompleted
			if err := releaseTable(ctx, tx, o); err != nil {
				return err
			}
		}
		if err := tx.Orders.Save(ctx, o); err != nil {
			return err
		}

		if err := tx.Outbox.Add(ctx, "order", o.ID, model.EventPaymentProcessed, map[string]any{
			"order_id":       o.ID,
			"payment_id":     p.ID,
			"method":         p.Method,
			"amount":         p.Amount.StringFixed(2),
			"paid_amount":    o.PaidAmount.StringFixed(2),
			"payment_status": o.PaymentStatus,
		}); err != nil {
			return err
		}
		if o.PaymentStatus == model.PaymentStatusPaid {
			if err := emitOrder(ctx, tx, model.EventOrderPaid, o, false); err != nil {
				return err
			}
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("payment processed",
		zap.Int64("order_id", order.ID),
		zap.Int64("payment_id", payment.ID),
		zap.String("method", string(payment.Method)),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("payment_status", string(order.PaymentStatus)),
	)
	return &PaymentResult{Order: order, Payment: payment}, nil
}

// checkMethod 校验会话仍在营业且终端启用了该支付方式；TouchOpen 同时锁住会话行，
// 与关班互斥
func (s *paymentService) checkMethod(ctx context.Context, tx *repository.Repos, o *model.Order, method model.PaymentMethod) error {
	session, err := tx.Sessions.GetByID(ctx, o.SessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrSessionNotFound.WithDetail("session %d of order %s not found", o.SessionID, o.OrderNumber)
		}
		return err
	}
	terminal, err := tx.Terminals.GetByID(ctx, session.TerminalID)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrTerminalNotFound.WithDetail("terminal %d not found", session.TerminalID)
		}
		return ErrCatalogUnavailable.Wrap(err)
	}
	if !terminal.MethodEnabled(method) {
		return ErrMethodDisabled.WithDetail("%s payments are disabled on terminal %s", method, terminal.Name)
	}
	return lockOpenSession(ctx, tx, session.ID)
}

func (s *paymentService) PaymentMethods(ctx context.Context, terminalID int64) ([]MethodOption, error) {
	if terminalID <= 0 {
		return nil, ErrTerminalRequired
	}
	terminal, err := s.catalog.Terminal(ctx, terminalID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrTerminalNotFound.WithDetail("terminal %d not found", terminalID)
		}
		return nil, ErrCatalogUnavailable.Wrap(err)
	}
	opts := make([]MethodOption, 0, len(model.PaymentMethods))
	for _, m := range model.PaymentMethods {
		if !terminal.MethodEnabled(m) {
			continue
		}
		opt := MethodOption{Method: m}
		if m == model.PaymentMethodUPI {
			opt.UPIID = terminal.UPIID
		}
		opts = append(opts, opt)
	}
	return opts, nil
}
