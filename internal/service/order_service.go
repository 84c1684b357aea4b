package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/d60-Lab/cafe-pos/internal/catalog"
	"github.com/d60-Lab/cafe-pos/internal/model"
	"github.com/d60-Lab/cafe-pos/internal/repository"
	"github.com/d60-Lab/cafe-pos/pkg/logger"
)

// LineInput 下单或加菜的一行
type LineInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// CreateOrderInput 创建订单参数
type CreateOrderInput struct {
	SessionID    int64
	TableID      *int64
	CustomerName *string
	Notes        *string
	Lines        []LineInput
	// SendToKitchen 创建即送厨（自助点餐）
	SendToKitchen bool
}

// OrderPatch 订单可修改字段；nil 表示不修改，空字符串表示清空
type OrderPatch struct {
	CustomerName *string
	Notes        *string
}

// Empty 没有任何字段需要修改
func (p OrderPatch) Empty() bool { return p.CustomerName == nil && p.Notes == nil }

// OrderQuery 订单列表查询条件
type OrderQuery struct {
	SessionID    int64
	TableID      int64
	Status       model.OrderStatus
	KitchenStage model.KitchenStage
	Limit        int
}

// OrderService 订单账本：订单与订单行、金额汇总、订单状态迁移
type OrderService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error)
	PlaceSelfOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error)
	AddLines(ctx context.Context, orderID int64, lines []LineInput) (*model.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) (*model.Order, error)
	SendToKitchen(ctx context.Context, orderID int64) (*model.Order, error)
	UpdateDetails(ctx context.Context, orderID int64, patch OrderPatch) (*model.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
	ListOrders(ctx context.Context, q OrderQuery) ([]*model.Order, error)
}

type orderService struct {
	engine
}

func NewOrderService(store *repository.Store, lookup catalog.Lookup, opts ...Option) OrderService {
	return &orderService{engine: newEngine(store, lookup, opts)}
}

func (s *orderService) CreateOrder(ctx context.Context, in CreateOrderInput) (order *model.Order, err error) {
	ctx, end := startSpan(ctx, "OrderService.CreateOrder", attribute.Int64("session.id", in.SessionID))
	defer func() { end(err) }()

	if in.SessionID <= 0 {
		return nil, ErrSessionRequired
	}
	if len(in.Lines) == 0 {
		return nil, ErrEmptyOrder
	}
	session, err := s.store.Sessions.GetByID(ctx, in.SessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSessionNotFound.WithDetail("session %d not found", in.SessionID)
		}
		return nil, err
	}
	if !session.IsOpen() {
		return nil, ErrSessionNotOpen.WithDetail("session %d is %s", session.ID, session.Status)
	}

	lines, err := s.resolveLines(ctx, in.Lines)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order = &model.Order{
		SessionID:     in.SessionID,
		TableID:       in.TableID,
		CustomerName:  normalize(in.CustomerName),
		Notes:         normalize(in.Notes),
		Status:        model.OrderStatusDraft,
		PaymentStatus: model.PaymentStatusUnpaid,
		Lines:         lines,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.SendToKitchen {
		order.Status = model.OrderStatusSentToKitchen
		order.KitchenStage = model.KitchenStageToCook
	}
	for i := range order.Lines {
		order.Lines[i].CreatedAt = now
	}
	order.RecomputeTotals()

	err = s.store.Transaction(ctx, func(tx *repository.Repos) error {
		if err := lockOpenSession(ctx, tx, in.SessionID); err != nil {
			return err
		}
		number, err := tx.Orders.NextOrderNumber(ctx, now)
		if err != nil {
			return err
		}
		order.OrderNumber = number
		if err := tx.Orders.Create(ctx, order); err != nil {
			return err
		}
		if order.TableID != nil {
			if err := occupyTable(ctx, tx, *order.TableID, order.ID); err != nil {
				return err
			}
		}
		if err := emitOrder(ctx, tx, model.EventOrderCreated, order, true); err != nil {
			return err
		}
		if order.KitchenStage.Started() {
			return emitOrder(ctx, tx, model.EventKitchenStageChanged, order, true)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("session_id", order.SessionID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	return order, nil
}

// PlaceSelfOrder 顾客扫桌台码自助下单：必须指定会话与桌台，订单直接进入后厨
func (s *orderService) PlaceSelfOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	if in.TableID == nil || *in.TableID <= 0 {
		return nil, ErrTableRequired
	}
	in.SendToKitchen = true
	return s.CreateOrder(ctx, in)
}

func occupyTable(ctx context.Context, tx *repository.Repos, tableID, orderID int64) error {
	err := tx.Tables.Occupy(ctx, tableID, orderID)
	switch {
	case err == nil:
		return nil
	case repository.IsNotFound(err):
		return ErrTableNotFound.WithDetail("table %d not found", tableID)
	case errors.Is(err, repository.ErrTableBusy):
		return ErrTableOccupied.WithDetail("table %d is occupied by another order", tableID)
	default:
		return err
	}
}

// releaseTable 释放订单占用的桌台；桌台已不属于该订单时静默跳过
func releaseTable(ctx context.Context, tx *repository.Repos, o *model.Order) error {
	if o.TableID == nil {
		return nil
	}
	_, err := tx.Tables.Release(ctx, *o.TableID, o.ID)
	return err
}

func (s *orderService) AddLines(ctx context.Context, orderID int64, inputs []LineInput) (order *model.Order, err error) {
	ctx, end := startSpan(ctx, "OrderService.AddLines", attribute.Int64("order.id", orderID))
	defer func() { end(err) }()

	lines, err := s.resolveLines(ctx, inputs)
	if err != nil {
		return nil, err
	}

	return s.withOrder(ctx, orderID, func(tx *repository.Repos, o *model.Order) error {
		if o.Status.IsTerminal() {
			return ErrOrderClosed.WithDetail("order %s is %s", o.OrderNumber, o.Status)
		}
		if o.Status != model.OrderStatusDraft {
			return ErrIllegalTransition.WithDetail("lines can only be added to draft orders, order %s is %s", o.OrderNumber, o.Status)
		}
		if err := lockOpenSession(ctx, tx, o.SessionID); err != nil {
			return err
		}
		// 每次重试都使用新的切片，避免残留上一次插入得到的 ID
		fresh := make([]model.OrderLine, len(lines))
		copy(fresh, lines)
		now := s.now()
		for i := range fresh {
			fresh[i].CreatedAt = now
		}
		if err := tx.Orders.AddLines(ctx, o.ID, fresh); err != nil {
			return err
		}
		all, err := tx.Orders.ListLines(ctx, o.ID)
		if err != nil {
			return err
		}
		o.Lines = all
		o.RecomputeTotals()
		if err := tx.Orders.Save(ctx, o); err != nil {
			return err
		}
		return emitOrder(ctx, tx, model.EventOrderLinesAdded, o, true)
	})
}

func (s *orderService) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) (order *model.Order, err error) {
	ctx, end := startSpan(ctx, "OrderService.UpdateStatus",
		attribute.Int64("order.id", orderID),
		attribute.String("order.status", string(status)),
	)
	defer func() { end(err) }()

	if !status.Valid() {
		return nil, ErrInvalidStatus.WithDetail("unknown order status %q", status)
	}

	var from model.OrderStatus
	order, err = s.withOrder(ctx, orderID, func(tx *repository.Repos, o *model.Order) error {
		if o.Status.IsTerminal() {
			return ErrOrderClosed.WithDetail("order %s is %s", o.OrderNumber, o.Status)
		}
		if !o.Status.CanTransitionTo(status) {
			return ErrIllegalTransition.WithDetail("cannot move order %s from %s to %s", o.OrderNumber, o.Status, status)
		}
		from = o.Status
		o.Status = status
		switch status {
		case model.OrderStatusSentToKitchen:
			o.KitchenStage = model.KitchenStageToCook
		case model.OrderStatusPreparing:
			if o.KitchenStage.Before(model.KitchenStagePreparing) {
				o.KitchenStage = model.KitchenStagePreparing
			}
		case model.OrderStatusCancelled:
			if o.PaidAmount.IsPositive() {
				return ErrOrderHasPayments.WithDetail("order %s has %s paid and cannot be cancelled",
					o.OrderNumber, o.PaidAmount.StringFixed(2))
			}
			if err := releaseTable(ctx, tx, o); err != nil {
				return err
			}
		}
		if err := tx.Orders.Save(ctx, o); err != nil {
			return err
		}
		return emitOrder(ctx, tx, model.EventOrderStatusChanged, o, false)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("order status changed",
		zap.Int64("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(order.Status)),
	)
	return order, nil
}

func (s *orderService) SendToKitchen(ctx context.Context, orderID int64) (order *model.Order, err error) {
	ctx, end := startSpan(ctx, "OrderService.SendToKitchen", attribute.Int64("order.id", orderID))
	defer func() { end(err) }()

	return s.withOrder(ctx, orderID, func(tx *repository.Repos, o *model.Order) error {
		if o.Status == model.OrderStatusCancelled {
			return ErrOrderClosed.WithDetail("order %s is cancelled", o.OrderNumber)
		}
		if o.KitchenStage.Started() {
			return nil
		}
		if !o.Status.CanTransitionTo(model.OrderStatusSentToKitchen) {
			return ErrOrderClosed.WithDetail("order %s is %s", o.OrderNumber, o.Status)
		}
		if err := lockOpenSession(ctx, tx, o.SessionID); err != nil {
			return err
		}
		o.Status = model.OrderStatusSentToKitchen
		o.KitchenStage = model.KitchenStageToCook
		if err := tx.Orders.Save(ctx, o); err != nil {
			return err
		}
		logger.Info("order sent to kitchen", zap.Int64("order_id", o.ID), zap.String("order_number", o.OrderNumber))
		return emitOrder(ctx, tx, model.EventKitchenStageChanged, o, true)
	})
}

func (s *orderService) UpdateDetails(ctx context.Context, orderID int64, patch OrderPatch) (order *model.Order, err error) {
	ctx, end := startSpan(ctx, "OrderService.UpdateDetails", attribute.Int64("order.id", orderID))
	defer func() { end(err) }()

	return s.withOrder(ctx, orderID, func(tx *repository.Repos, o *model.Order) error {
		if o.Status.IsTerminal() {
			return ErrOrderClosed.WithDetail("order %s is %s", o.OrderNumber, o.Status)
		}
		if patch.Empty() {
			return nil
		}
		if patch.CustomerName != nil {
			o.CustomerName = normalize(patch.CustomerName)
		}
		if patch.Notes != nil {
			o.Notes = normalize(patch.Notes)
		}
		if err := tx.Orders.Save(ctx, o); err != nil {
			return err
		}
		return emitOrder(ctx, tx, model.EventOrderUpdated, o, false)
	})
}

func (s *orderService) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	o, err := s.store.Orders.GetByID(ctx, orderID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrOrderNotFound.WithDetail("order %d not found", orderID)
		}
		return nil, err
	}
	return o, nil
}

func (s *orderService) ListOrders(ctx context.Context, q OrderQuery) ([]*model.Order, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, ErrInvalidStatus.WithDetail("unknown order status %q", q.Status)
	}
	f := repository.OrderFilter{
		SessionID: q.SessionID,
		TableID:   q.TableID,
		Status:    q.Status,
		Limit:     q.Limit,
	}
	if q.KitchenStage != "" {
		if !q.KitchenStage.Valid() {
			return nil, ErrInvalidStage.WithDetail("unknown kitchen stage %q", q.KitchenStage)
		}
		f.KitchenStages = []model.KitchenStage{q.KitchenStage}
	}
	return s.store.Orders.List(ctx, f)
}

// normalize 把空白字符串视为清空
func normalize(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
