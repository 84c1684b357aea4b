package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/cafe-pos/internal/model"
)

// PaymentRepository 支付记录仓储
type PaymentRepository interface {
	Create(ctx context.Context, p *model.PaymentRecord) error
	ListByOrder(ctx context.Context, orderID int64) ([]model.PaymentRecord, error)
	ListBySession(ctx context.Context, sessionID int64) ([]model.PaymentRecord, error)
}

type paymentRepository struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) PaymentRepository { return &paymentRepository{db: db} }

func (r *paymentRepository) Create(ctx context.Context, p *model.PaymentRecord) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *paymentRepository) ListByOrder(ctx context.Context, orderID int64) ([]model.PaymentRecord, error) {
	var res []model.PaymentRecord
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id").Find(&res).Error
	return res, err
}

func (r *paymentRepository) ListBySession(ctx context.Context, sessionID int64) ([]model.PaymentRecord, error) {
	var res []model.PaymentRecord
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id").Find(&res).Error
	return res, err
}
