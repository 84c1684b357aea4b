package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod 支付方式
type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodDigital PaymentMethod = "digital"
	PaymentMethodUPI     PaymentMethod = "upi"
)

// PaymentMethods 所有支持的支付方式，顺序即汇总报表中的顺序
var PaymentMethods = []PaymentMethod{PaymentMethodCash, PaymentMethodDigital, PaymentMethodUPI}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodDigital, PaymentMethodUPI:
		return true
	}
	return false
}

// PaymentRecord 一笔支付记录；同一订单可以多笔部分支付，但总额不超过订单金额
type PaymentRecord struct {
	ID             int64            `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID        int64            `json:"order_id" gorm:"index;not null"`
	SessionID      int64            `json:"session_id" gorm:"index;not null"`
	Method         PaymentMethod    `json:"method" gorm:"type:varchar(16);not null"`
	Amount         decimal.Decimal  `json:"amount" gorm:"type:decimal(12,2);not null"`
	AmountReceived *decimal.Decimal `json:"amount_received,omitempty" gorm:"type:decimal(12,2)"`
	ChangeAmount   decimal.Decimal  `json:"change_amount" gorm:"type:decimal(12,2);not null"`
	CreatedAt      time.Time        `json:"created_at"`
}

func (PaymentRecord) TableName() string { return "payments" }

// DerivePaymentStatus 根据已付金额推导支付状态
func DerivePaymentStatus(paid, total decimal.Decimal) PaymentStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return PaymentStatusPaid
	case paid.IsPositive():
		return PaymentStatusPartial
	default:
		return PaymentStatusUnpaid
	}
}
