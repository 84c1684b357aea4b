package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/d60-Lab/cafe-pos/internal/catalog"
	"github.com/d60-Lab/cafe-pos/internal/model"
	"github.com/d60-Lab/cafe-pos/internal/repository"
	"github.com/d60-Lab/cafe-pos/pkg/logger"
	"github.com/d60-Lab/cafe-pos/pkg/tracing"
)

// Option 服务构造选项
type Option func(*engine)

// WithClock 替换时钟（测试中固定日期以断言订单号）
func WithClock(now func() time.Time) Option {
	return func(e *engine) { e.now = now }
}

// WithRetryAttempts 乐观锁冲突时的最大尝试次数
func WithRetryAttempts(n int) Option {
	return func(e *engine) {
		if n > 0 {
			e.attempts = n
		}
	}
}

// WithSessionScope 会话唯一性范围：terminal | user | both
func WithSessionScope(scope string) Option {
	return func(e *engine) {
		if scope != "" {
			e.scope = scope
		}
	}
}

// engine 四个服务共享的依赖
type engine struct {
	store    *repository.Store
	catalog  catalog.Lookup
	now      func() time.Time
	attempts int
	scope    string
}

func newEngine(store *repository.Store, lookup catalog.Lookup, opts []Option) engine {
	e := engine{
		store:    store,
		catalog:  lookup,
		now:      func() time.Time { return time.Now().UTC() },
		attempts: 3,
		scope:    "terminal",
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// withOrder 在事务内加载订单并执行 fn。fn 写回订单时由 Save 校验版本；
// 版本冲突则整个事务回滚并以最新状态重试。
func (e *engine) withOrder(ctx context.Context, orderID int64, fn func(tx *repository.Repos, o *model.Order) error) (*model.Order, error) {
	var lastErr error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		var order *model.Order
		err := e.store.Transaction(ctx, func(tx *repository.Repos) error {
			o, err := tx.Orders.GetByID(ctx, orderID)
			if err != nil {
				if repository.IsNotFound(err) {
					return ErrOrderNotFound.WithDetail("order %d not found", orderID)
				}
				return err
			}
			if err := fn(tx, o); err != nil {
				return err
			}
			order = o
			return nil
		})
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, repository.ErrStaleVersion) {
			return nil, err
		}
		lastErr = err
		logger.Warn("order version conflict, retrying",
			zap.Int64("order_id", orderID),
			zap.Int("attempt", attempt),
		)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, ErrConcurrentUpdate.WithDetail("order %d was modified concurrently, retry the request", orderID).Wrap(lastErr)
}

// resolveLines 校验订单行输入并按商品快照计算金额
func (e *engine) resolveLines(ctx context.Context, inputs []LineInput) ([]model.OrderLine, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyOrder
	}
	ids := make([]int64, 0, len(inputs))
	for i, in := range inputs {
		if in.Quantity < 1 {
			return nil, ErrInvalidQuantity.WithDetail("line %d: quantity must be at least 1, got %d", i+1, in.Quantity)
		}
		ids = append(ids, in.ProductID)
	}

	products, missing, err := e.catalog.Products(ctx, ids)
	if err != nil {
		return nil, ErrCatalogUnavailable.Wrap(err)
	}
	if len(missing) > 0 {
		return nil, ErrProductNotFound.WithDetail("products not found: %s", joinIDs(missing))
	}

	lines := make([]model.OrderLine, 0, len(inputs))
	for _, in := range inputs {
		lines = append(lines, model.NewOrderLine(products[in.ProductID], in.Quantity))
	}
	return lines, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

// startSpan 开启服务层 span，返回的 end 记录错误并结束 span
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := tracing.Tracer("cafe-pos/service").Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// orderEvent 订单类事件的公共载荷
type orderEvent struct {
	OrderID       int64               `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	SessionID     int64               `json:"session_id"`
	TableID       *int64              `json:"table_id,omitempty"`
	Status        model.OrderStatus   `json:"status"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	KitchenStage  model.KitchenStage  `json:"kitchen_stage,omitempty"`
	TotalAmount   string              `json:"total_amount"`
	PaidAmount    string              `json:"paid_amount"`
	Lines         []model.OrderLine   `json:"lines,omitempty"`
}

func newOrderEvent(o *model.Order, withLines bool) orderEvent {
	ev := orderEvent{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		SessionID:     o.SessionID,
		TableID:       o.TableID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		KitchenStage:  o.KitchenStage,
		TotalAmount:   o.TotalAmount.StringFixed(2),
		PaidAmount:    o.PaidAmount.StringFixed(2),
	}
	if withLines {
		ev.Lines = o.Lines
	}
	return ev
}

func emitOrder(ctx context.Context, tx *repository.Repos, eventType string, o *model.Order, withLines bool) error {
	return tx.Outbox.Add(ctx, "order", o.ID, eventType, newOrderEvent(o, withLines))
}

// lockOpenSession 锁住会话行并确认仍在营业，与关班互斥
func lockOpenSession(ctx context.Context, tx *repository.Repos, sessionID int64) error {
	open, err := tx.Sessions.TouchOpen(ctx, sessionID)
	if err != nil {
		return err
	}
	if !open {
		return ErrSessionNotOpen.WithDetail("session %d is closed", sessionID)
	}
	return nil
}
