package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/cafe-pos/internal/model"
)

// ProductRepository 商品只读查询
type ProductRepository interface {
	FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error)
}

type productRepository struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepository{db: db} }

func (r *productRepository) FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var res []model.Product
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&res).Error
	return res, err
}

// TerminalRepository 终端配置只读查询
type TerminalRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Terminal, error)
}

type terminalRepository struct{ db *gorm.DB }

func NewTerminalRepository(db *gorm.DB) TerminalRepository { return &terminalRepository{db: db} }

func (r *terminalRepository) GetByID(ctx context.Context, id int64) (*model.Terminal, error) {
	var t model.Terminal
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}
