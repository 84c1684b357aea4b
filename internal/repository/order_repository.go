package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/cafe-pos/internal/model"
)

// OrderFilter 订单列表过滤条件，零值字段不参与过滤
type OrderFilter struct {
	SessionID     int64
	TableID       int64
	Status        model.OrderStatus
	KitchenStages []model.KitchenStage
	// ExcludeStatuses 排除的订单状态，如后厨队列排除已取消订单
	ExcludeStatuses []model.OrderStatus
	Limit           int
	OldestFirst     bool
}

// KitchenCounts 后厨看板统计：按阶段的订单数与订单行出餐进度
type KitchenCounts struct {
	Stages        map[model.KitchenStage]int64
	PendingLines  int64
	PreparedLines int64
}

// OrderRepository 订单仓储接口
type OrderRepository interface {
	// Create 创建订单（连同订单行）
	Create(ctx context.Context, order *model.Order) error

	// GetByID 查询订单，预加载订单行与支付记录
	GetByID(ctx context.Context, id int64) (*model.Order, error)

	// List 按条件查询订单列表（含订单行）
	List(ctx context.Context, f OrderFilter) ([]*model.Order, error)

	// ListBySession 会话下全部订单，不加载订单行
	ListBySession(ctx context.Context, sessionID int64) ([]*model.Order, error)

	// Save 以乐观锁方式写回订单头；版本不符返回 ErrStaleVersion
	Save(ctx context.Context, order *model.Order) error

	// AddLines 追加订单行
	AddLines(ctx context.Context, orderID int64, lines []model.OrderLine) error

	// ListLines 订单的全部订单行
	ListLines(ctx context.Context, orderID int64) ([]model.OrderLine, error)

	// SetLinePrepared 标记订单行已出餐
	SetLinePrepared(ctx context.Context, orderID, lineID int64) error

	// NextOrderNumber 生成当日递增订单号 ORD-YYYYMMDD-NNNN
	NextOrderNumber(ctx context.Context, at time.Time) (string, error)

	// KitchenCounts 统计仍在后厨视野内的订单：未取消且在做，
	// 或已出齐但订单仍处于 sent_to_kitchen / preparing
	KitchenCounts(ctx context.Context) (*KitchenCounts, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository { return &orderRepository{db: db} }

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	if order.Version == 0 {
		order.Version = 1
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, f OrderFilter) ([]*model.Order, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{}).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
	if f.SessionID > 0 {
		q = q.Where("session_id = ?", f.SessionID)
	}
	if f.TableID > 0 {
		q = q.Where("table_id = ?", f.TableID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if len(f.KitchenStages) > 0 {
		q = q.Where("kitchen_stage IN ?", f.KitchenStages)
	}
	if len(f.ExcludeStatuses) > 0 {
		q = q.Where("status NOT IN ?", f.ExcludeStatuses)
	}
	if f.OldestFirst {
		q = q.Order("created_at ASC").Order("id ASC")
	} else {
		q = q.Order("created_at DESC").Order("id DESC")
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var orders []*model.Order
	if err := q.Limit(limit).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) ListBySession(ctx context.Context, sessionID int64) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id").
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) Save(ctx context.Context, order *model.Order) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]any{
			"status":         order.Status,
			"payment_status": order.PaymentStatus,
			"kitchen_stage":  order.KitchenStage,
			"subtotal":       order.Subtotal,
			"tax_amount":     order.TaxAmount,
			"total_amount":   order.TotalAmount,
			"paid_amount":    order.PaidAmount,
			"customer_name":  order.CustomerName,
			"notes":          order.Notes,
			"version":        order.Version + 1,
			"updated_at":     now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %d: %w", order.ID, ErrStaleVersion)
	}
	order.Version++
	order.UpdatedAt = now
	return nil
}

func (r *orderRepository) AddLines(ctx context.Context, orderID int64, lines []model.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		lines[i].OrderID = orderID
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *orderRepository) ListLines(ctx context.Context, orderID int64) ([]model.OrderLine, error) {
	var lines []model.OrderLine
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id").Find(&lines).Error
	return lines, err
}

func (r *orderRepository) SetLinePrepared(ctx context.Context, orderID, lineID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.OrderLine{}).
		Where("id = ? AND order_id = ?", lineID, orderID).
		Update("is_prepared", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *orderRepository) NextOrderNumber(ctx context.Context, at time.Time) (string, error) {
	day := at.Format("20060102")
	// 行锁持有到事务结束，同日并发下单按提交顺序取号
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "day"}},
			DoUpdates: clause.Assignments(map[string]any{"last_value": gorm.Expr("order_sequences.last_value + 1")}),
		}).
		Create(&model.OrderSequence{Day: day, LastValue: 1}).Error
	if err != nil {
		return "", fmt.Errorf("bump order sequence: %w", err)
	}

	var seq model.OrderSequence
	if err := r.db.WithContext(ctx).Where("day = ?", day).Take(&seq).Error; err != nil {
		return "", fmt.Errorf("read order sequence: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%04d", day, seq.LastValue), nil
}

const kitchenActiveCond = "status <> ? AND (kitchen_stage IN ? OR (kitchen_stage = ? AND status IN ?))"

func kitchenActiveArgs() []any {
	return []any{
		model.OrderStatusCancelled,
		[]model.KitchenStage{model.KitchenStageToCook, model.KitchenStagePreparing},
		model.KitchenStageCompleted,
		[]model.OrderStatus{model.OrderStatusSentToKitchen, model.OrderStatusPreparing},
	}
}

func (r *orderRepository) KitchenCounts(ctx context.Context) (*KitchenCounts, error) {
	var stages []struct {
		KitchenStage model.KitchenStage
		Count        int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Select("kitchen_stage, COUNT(*) AS count").
		Where(kitchenActiveCond, kitchenActiveArgs()...).
		Group("kitchen_stage").
		Scan(&stages).Error
	if err != nil {
		return nil, err
	}

	var lines struct {
		Total    int64
		Prepared int64
	}
	active := r.db.WithContext(ctx).Model(&model.Order{}).Select("id").Where(kitchenActiveCond, kitchenActiveArgs()...)
	err = r.db.WithContext(ctx).
		Model(&model.OrderLine{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN is_prepared THEN 1 ELSE 0 END), 0) AS prepared").
		Where("order_id IN (?)", active).
		Scan(&lines).Error
	if err != nil {
		return nil, err
	}

	counts := &KitchenCounts{
		Stages: map[model.KitchenStage]int64{
			model.KitchenStageToCook:    0,
			model.KitchenStagePreparing: 0,
			model.KitchenStageCompleted: 0,
		},
		PendingLines:  lines.Total - lines.Prepared,
		PreparedLines: lines.Prepared,
	}
	for _, row := range stages {
		counts.Stages[row.KitchenStage] = row.Count
	}
	return counts, nil
}
