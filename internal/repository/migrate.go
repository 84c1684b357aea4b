package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/d60-Lab/cafe-pos/internal/model"
)

// Migrate 初始化数据库表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Product{},
		&model.DiningTable{},
		&model.Terminal{},
		&model.PosSession{},
		&model.Order{},
		&model.OrderLine{},
		&model.PaymentRecord{},
		&model.OrderSequence{},
		&model.Outbox{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
