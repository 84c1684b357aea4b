package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/cafe-pos/internal/model"
)

// TableRepository 桌台占用登记。只有当前占用订单能释放桌台。
type TableRepository interface {
	GetByID(ctx context.Context, id int64) (*model.DiningTable, error)
	// Occupy 订单占用桌台；桌台不存在返回 gorm.ErrRecordNotFound，被其他订单占用返回 ErrTableBusy
	Occupy(ctx context.Context, tableID, orderID int64) error
	// Release 释放桌台；桌台不属于该订单时不做任何修改并返回 false
	Release(ctx context.Context, tableID, orderID int64) (bool, error)
}

type tableRepository struct{ db *gorm.DB }

func NewTableRepository(db *gorm.DB) TableRepository { return &tableRepository{db: db} }

func (r *tableRepository) GetByID(ctx context.Context, id int64) (*model.DiningTable, error) {
	var t model.DiningTable
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tableRepository) Occupy(ctx context.Context, tableID, orderID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.DiningTable{}).
		Where("id = ? AND (current_order_id IS NULL OR current_order_id = ?)", tableID, orderID).
		Updates(map[string]any{
			"status":           model.TableStatusOccupied,
			"current_order_id": orderID,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, tableID); err != nil {
		return err
	}
	return ErrTableBusy
}

func (r *tableRepository) Release(ctx context.Context, tableID, orderID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.DiningTable{}).
		Where("id = ? AND current_order_id = ?", tableID, orderID).
		Updates(map[string]any{
			"status":           model.TableStatusAvailable,
			"current_order_id": gorm.Expr("NULL"),
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
