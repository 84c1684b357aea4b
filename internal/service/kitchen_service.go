package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/d60-Lab/cafe-pos/internal/catalog"
	"github.com/d60-Lab/cafe-pos/internal/model"
	"github.com/d60-Lab/cafe-pos/internal/repository"
	"github.com/d60-Lab/cafe-pos/pkg/logger"
)

// KitchenService 后厨阶段跟踪。订单行的出餐标记是事实来源，
// 订单上的 kitchen_stage 是每次标记后重新推导的投影，只进不退。
type KitchenService interface {
	AdvanceStage(ctx context.Context, orderID int64, target model.KitchenStage) (*model.Order, error)
	MarkLinePrepared(ctx context.Context, orderID, lineID int64) (*model.Order, error)
	// Queue 后厨看板轮询：未完成的订单按下单先后排列；stage 为空时返回 to_cook 与 preparing
	Queue(ctx context.Context, stage model.KitchenStage, limit int) ([]*model.Order, error)
	Stats(ctx context.Context) (*KitchenStats, error)
}

// KitchenStats 后厨看板计数
type KitchenStats struct {
	ToCook        int64 `json:"to_cook"`
	Preparing     int64 `json:"preparing"`
	Completed     int64 `json:"completed"`
	PendingLines  int64 `json:"pending_lines"`
	PreparedLines int64 `json:"prepared_lines"`
}

type kitchenService struct {
	engine
}

func NewKitchenService(store *repository.Store, lookup catalog.Lookup, opts ...Option) KitchenService {
	return &kitchenService{engine: newEngine(store, lookup, opts)}
}

func (s *kitchenService) AdvanceStage(ctx context.Context, orderID int64, target model.KitchenStage) (order *model.Order, err error) {
	ctx, end := startSpan(ctx, "KitchenService.AdvanceStage",
		attribute.Int64("order.id", orderID),
		attribute.String("kitchen.stage", string(target)),
	)
	defer func() { end(err) }()

	if !target.Valid() {
		return nil, ErrInvalidStage.WithDetail("unknown kitchen stage %q", target)
	}

	var from model.KitchenStage
	order, err = s.withOrder(ctx, orderID, func(tx *repository.Repos, o *model.Order) error {
		if o.Status == model.OrderStatusCancelled {
			return ErrOrderClosed.WithDetail("order %s is cancelled", o.OrderNumber)
		}
		if !o.KitchenStage.Started() {
			return ErrInvalidStageTransition.WithDetail("order %s has not been sent to the kitchen", o.OrderNumber)
		}
		next, ok := o.KitchenStage.Next()
		if !ok || next != target {
			return ErrInvalidStageTransition.WithDetail("cannot move kitchen stage of order %s from %s to %s", o.OrderNumber, o.KitchenStage, target)
		}
		from = o.KitchenStage
		applyStage(o, target)
		if err := tx.Orders.Save(ctx, o); err != nil {
			return err
		}
		return emitOrder(ctx, tx, model.EventKitchenStageChanged, o, false)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("kitchen stage advanced",
		zap.Int64("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(order.KitchenStage)),
	)
	return order, nil
}

// applyStage 写入阶段；开始制作时订单状态随之从 sent_to_kitchen 进入 preparing
func applyStage(o *model.Order, stage model.KitchenStage) {
	o.KitchenStage = stage
	if stage != model.KitchenStageToCook && o.Status == model.OrderStatusSentToKitchen {
		o.Status = model.OrderStatusPreparing
	}
}

func (s *kitchenService) MarkLinePrepared(ctx context.Context, orderID, lineID int64) (order *model.Order, err error) {
	ctx, end := startSpan(ctx, "KitchenService.MarkLinePrepared",
		attribute.Int64("order.id", orderID),
		attribute.Int64("line.id", lineID),
	)
	defer func() { end(err) }()

	var changed bool
	order, err = s.withOrder(ctx, orderID, func(tx *repository.Repos, o *model.Order) error {
		changed = false
		line, ok := o.Line(lineID)
		if !ok {
			return ErrLineNotFound.WithDetail("line %d not found on order %s", lineID, o.OrderNumber)
		}
		if o.Status == model.OrderStatusCancelled {
			return ErrOrderClosed.WithDetail("order %s is cancelled", o.OrderNumber)
		}
		if !o.KitchenStage.Started() {
			return ErrInvalidStageTransition.WithDetail("order %s has not been sent to the kitchen", o.OrderNumber)
		}
		if line.IsPrepared {
			return nil
		}

		if err := tx.Orders.SetLinePrepared(ctx, o.ID, lineID); err != nil {
			if repository.IsNotFound(err) {
				return ErrLineNotFound.WithDetail("line %d not found on order %s", lineID, o.OrderNumber)
			}
			return err
		}
		// 重新读取完整订单行再推导阶段，不依赖增量计数
		lines, err := tx.Orders.ListLines(ctx, o.ID)
		if err != nil {
			return err
		}
		o.Lines = lines
		prev := o.KitchenStage
		derived := model.DeriveKitchenStage(prev, o.PreparedCount(), len(o.Lines))
		if derived != prev {
			applyStage(o, derived)
			changed = true
		}
		// 即使阶段不变也要写回，版本号递增使并发标记串行化
		if err := tx.Orders.Save(ctx, o); err != nil {
			return err
		}
		if err := tx.Outbox.Add(ctx, "order", o.ID, model.EventLinePrepared, map[string]any{
			"order_id":      o.ID,
			"order_number":  o.OrderNumber,
			"line_id":       lineID,
			"kitchen_stage": o.KitchenStage,
		}); err != nil {
			return err
		}
		if changed {
			return emitOrder(ctx, tx, model.EventKitchenStageChanged, o, false)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		logger.Info("kitchen stage derived from prepared lines",
			zap.Int64("order_id", order.ID),
			zap.String("stage", string(order.KitchenStage)),
		)
	}
	return order, nil
}

func (s *kitchenService) Queue(ctx context.Context, stage model.KitchenStage, limit int) ([]*model.Order, error) {
	stages := []model.KitchenStage{model.KitchenStageToCook, model.KitchenStagePreparing}
	if stage != model.KitchenStageNone {
		if !stage.Valid() {
			return nil, ErrInvalidStage.WithDetail("unknown kitchen stage %q", stage)
		}
		stages = []model.KitchenStage{stage}
	}
	return s.store.Orders.List(ctx, repository.OrderFilter{
		KitchenStages:   stages,
		ExcludeStatuses: []model.OrderStatus{model.OrderStatusCancelled},
		Limit:           limit,
		OldestFirst:     true,
	})
}

func (s *kitchenService) Stats(ctx context.Context) (*KitchenStats, error) {
	counts, err := s.store.Orders.KitchenCounts(ctx)
	if err != nil {
		return nil, err
	}
	return &KitchenStats{
		ToCook:        counts.Stages[model.KitchenStageToCook],
		Preparing:     counts.Stages[model.KitchenStagePreparing],
		Completed:     counts.Stages[model.KitchenStageCompleted],
		PendingLines:  counts.PendingLines,
		PreparedLines: counts.PreparedLines,
	}, nil
}
