package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 以下为外部 CRUD 层维护的表，引擎只读取或按约定修改占用状态。

// Product 商品
type Product struct {
	ID        int64           `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string          `json:"name" gorm:"type:varchar(128);not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	TaxRate   decimal.Decimal `json:"tax_rate" gorm:"type:decimal(5,2);not null"`
	IsActive  bool            `json:"is_active" gorm:"not null"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Product) TableName() string { return "products" }

// TableStatus 桌台状态
type TableStatus string

const (
	TableStatusAvailable TableStatus = "available"
	TableStatusOccupied  TableStatus = "occupied"
)

// DiningTable 桌台；CurrentOrderID 为当前占用它的订单
type DiningTable struct {
	ID             int64       `json:"id" gorm:"primaryKey;autoIncrement"`
	Number         string      `json:"number" gorm:"type:varchar(16);not null"`
	Seats          int         `json:"seats"`
	Status         TableStatus `json:"status" gorm:"type:varchar(16);not null;default:'available'"`
	CurrentOrderID *int64      `json:"current_order_id,omitempty"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func (DiningTable) TableName() string { return "dining_tables" }

// Terminal POS 终端配置，控制可用的支付方式
type Terminal struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name           string    `json:"name" gorm:"type:varchar(64);not null"`
	CashEnabled    bool      `json:"cash_enabled" gorm:"not null"`
	DigitalEnabled bool      `json:"digital_enabled" gorm:"not null"`
	UPIEnabled     bool      `json:"upi_enabled" gorm:"not null"`
	UPIID          *string   `json:"upi_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Terminal) TableName() string { return "terminals" }

// MethodEnabled 终端是否启用该支付方式
func (t *Terminal) MethodEnabled(m PaymentMethod) bool {
	switch m {
	case PaymentMethodCash:
		return t.CashEnabled
	case PaymentMethodDigital:
		return t.DigitalEnabled
	case PaymentMethodUPI:
		return t.UPIEnabled
	}
	return false
}

// OrderSequence 按自然日递增的订单号计数器
type OrderSequence struct {
	Day       string `gorm:"primaryKey;type:varchar(8)"`
	LastValue int64  `gorm:"not null"`
}

func (OrderSequence) TableName() string { return "order_sequences" }
