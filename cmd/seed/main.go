// seed 写入演示用的终端、商品与桌台，已存在的行保持不变
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/cafe-pos/config"
	"github.com/d60-Lab/cafe-pos/internal/model"
	"github.com/d60-Lab/cafe-pos/internal/repository"
	"github.com/d60-Lab/cafe-pos/pkg/database"
	"github.com/d60-Lab/cafe-pos/pkg/logger"
)

func main() {
	tables := flag.Int("tables", 8, "number of dining tables to create")
	flag.Parse()

	if err := run(*tables); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func run(tables int) error {
	if tables < 1 {
		return fmt.Errorf("-tables must be at least 1, got %d", tables)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.L().Sync() }()

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	if err := repository.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	upi := "cafe@upi"
	terminals := []model.Terminal{
		{ID: 1, Name: "Front Counter", CashEnabled: true, DigitalEnabled: true, UPIEnabled: true, UPIID: &upi},
		{ID: 2, Name: "Self Kiosk", DigitalEnabled: true, UPIEnabled: true, UPIID: &upi},
	}
	products := []model.Product{
		{ID: 1, Name: "Espresso", Price: decimal.RequireFromString("2.50"), TaxRate: decimal.NewFromInt(5), IsActive: true},
		{ID: 2, Name: "Latte", Price: decimal.RequireFromString("3.80"), TaxRate: decimal.NewFromInt(5), IsActive: true},
		{ID: 3, Name: "Croissant", Price: decimal.RequireFromString("2.20"), TaxRate: decimal.NewFromInt(12), IsActive: true},
		{ID: 4, Name: "Club Sandwich", Price: decimal.RequireFromString("6.90"), TaxRate: decimal.NewFromInt(12), IsActive: true},
		{ID: 5, Name: "Cheesecake", Price: decimal.RequireFromString("4.50"), TaxRate: decimal.NewFromInt(12), IsActive: true},
	}
	dining := make([]model.DiningTable, 0, tables)
	for i := 1; i <= tables; i++ {
		dining = append(dining, model.DiningTable{
			ID:     int64(i),
			Number: fmt.Sprintf("T%d", i),
			Seats:  4,
			Status: model.TableStatusAvailable,
		})
	}

	seeds := []struct {
		table string
		rows  any
	}{
		{model.Terminal{}.TableName(), &terminals},
		{model.Product{}.TableName(), &products},
		{model.DiningTable{}.TableName(), &dining},
	}
	skip := clause.OnConflict{DoNothing: true}
	for _, s := range seeds {
		res := db.Clauses(skip).Create(s.rows)
		if res.Error != nil {
			return fmt.Errorf("seed %s: %w", s.table, res.Error)
		}
		if cfg.Database.Driver == "postgres" {
			if err := syncSequence(db, s.table); err != nil {
				return err
			}
		}
		logger.Info("seeded", zap.String("table", s.table), zap.Int64("new_rows", res.RowsAffected))
	}
	return nil
}

// syncSequence 显式写入主键后把自增序列推到当前最大值
func syncSequence(db *gorm.DB, table string) error {
	sql := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE((SELECT MAX(id) FROM %[1]s), 1))", table)
	if err := db.Exec(sql).Error; err != nil {
		return fmt.Errorf("sync %s id sequence: %w", table, err)
	}
	return nil
}
