package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusDraft         OrderStatus = "draft"
	OrderStatusSentToKitchen OrderStatus = "sent_to_kitchen"
	OrderStatusPreparing     OrderStatus = "preparing"
	OrderStatusCompleted     OrderStatus = "completed"
	OrderStatusCancelled     OrderStatus = "cancelled"
)

// PaymentStatus 支付状态
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// Order 订单，属于创建它的收银会话，金额始终由订单行汇总得出
type Order struct {
	ID            int64           `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderNumber   string          `json:"order_number" gorm:"type:varchar(32);uniqueIndex;not null"`
	SessionID     int64           `json:"session_id" gorm:"index:idx_order_session_payment;not null"`
	TableID       *int64          `json:"table_id,omitempty" gorm:"index"`
	CustomerName  *string         `json:"customer_name,omitempty" gorm:"type:varchar(128)"`
	Notes         *string         `json:"notes,omitempty" gorm:"type:text"`
	Status        OrderStatus     `json:"status" gorm:"type:varchar(20);index;not null"`
	PaymentStatus PaymentStatus   `json:"payment_status" gorm:"type:varchar(20);index:idx_order_session_payment;not null"`
	KitchenStage  KitchenStage    `json:"kitchen_stage,omitempty" gorm:"type:varchar(20);index"`
	Subtotal      decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	TaxAmount     decimal.Decimal `json:"tax_amount" gorm:"type:decimal(12,2);not null"`
	TotalAmount   decimal.Decimal `json:"total_amount" gorm:"type:decimal(12,2);not null"`
	PaidAmount    decimal.Decimal `json:"paid_amount" gorm:"type:decimal(12,2);not null"`
	// Version 乐观锁版本号，每次写订单行都会 +1
	Version   int64     `json:"version" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Lines    []OrderLine     `json:"lines,omitempty" gorm:"foreignKey:OrderID"`
	Payments []PaymentRecord `json:"payments,omitempty" gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string { return "orders" }

// OrderLine 订单行，价格与税率为下单时快照
type OrderLine struct {
	ID          int64           `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID     int64           `json:"order_id" gorm:"index;not null"`
	ProductID   int64           `json:"product_id" gorm:"not null"`
	ProductName string          `json:"product_name" gorm:"type:varchar(128)"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	TaxRate     decimal.Decimal `json:"tax_rate" gorm:"type:decimal(5,2);not null"` // 百分比，10 表示 10%
	Subtotal    decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	Total       decimal.Decimal `json:"total" gorm:"type:decimal(12,2);not null"`
	IsPrepared  bool            `json:"is_prepared" gorm:"not null;default:false"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (OrderLine) TableName() string { return "order_lines" }

var hundred = decimal.NewFromInt(100)

// NewOrderLine 依据商品快照计算行金额：subtotal = qty × price，tax 按行四舍五入到分
func NewOrderLine(p Product, quantity int) OrderLine {
	subtotal := p.Price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	tax := subtotal.Mul(p.TaxRate).Div(hundred).Round(2)
	return OrderLine{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    quantity,
		UnitPrice:   p.Price,
		TaxRate:     p.TaxRate,
		Subtotal:    subtotal,
		Total:       subtotal.Add(tax),
	}
}

// Tax 行税额
func (l OrderLine) Tax() decimal.Decimal { return l.Total.Sub(l.Subtotal) }

// RecomputeTotals 用完整订单行重新汇总金额，不做增量累加
func (o *Order) RecomputeTotals() {
	subtotal, total := decimal.Zero, decimal.Zero
	for _, l := range o.Lines {
		subtotal = subtotal.Add(l.Subtotal)
		total = total.Add(l.Total)
	}
	o.Subtotal = subtotal
	o.TotalAmount = total
	o.TaxAmount = total.Sub(subtotal)
}

// Balance 未付金额
func (o *Order) Balance() decimal.Decimal {
	b := o.TotalAmount.Sub(o.PaidAmount)
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

// Line 按 ID 查找订单行
func (o *Order) Line(lineID int64) (*OrderLine, bool) {
	for i := range o.Lines {
		if o.Lines[i].ID == lineID {
			return &o.Lines[i], true
		}
	}
	return nil, false
}

// PreparedCount 已出餐的行数
func (o *Order) PreparedCount() int {
	n := 0
	for _, l := range o.Lines {
		if l.IsPrepared {
			n++
		}
	}
	return n
}
