package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionStatus 收银会话状态
type SessionStatus string

const (
	SessionStatusOpen   SessionStatus = "open"
	SessionStatusClosed SessionStatus = "closed"
)

// PosSession 收银会话（一个班次）。
// OpenTerminalLock / OpenUserLock 仅在会话打开期间有值，唯一索引保证同一范围内最多一个打开的会话；
// 关闭时置 NULL，NULL 不参与唯一性比较。
type PosSession struct {
	ID                int64            `json:"id" gorm:"primaryKey;autoIncrement"`
	TerminalID        int64            `json:"terminal_id" gorm:"index;not null"`
	ResponsibleUserID int64            `json:"responsible_user_id" gorm:"index;not null"`
	OpenDate          time.Time        `json:"open_date" gorm:"not null"`
	CloseDate         *time.Time       `json:"close_date,omitempty"`
	Status            SessionStatus    `json:"status" gorm:"type:varchar(16);index;not null"`
	SaleAmount        decimal.Decimal  `json:"sale_amount" gorm:"type:decimal(12,2);not null"`
	OpeningBalance    decimal.Decimal  `json:"opening_balance" gorm:"type:decimal(12,2);not null"`
	ClosingBalance    *decimal.Decimal `json:"closing_balance,omitempty" gorm:"type:decimal(12,2)"`
	ExpectedCash      *decimal.Decimal `json:"expected_cash,omitempty" gorm:"type:decimal(12,2)"`
	CashDifference    *decimal.Decimal `json:"cash_difference,omitempty" gorm:"type:decimal(12,2)"`
	OpenTerminalLock  *int64           `json:"-" gorm:"uniqueIndex:ux_session_open_terminal"`
	OpenUserLock      *int64           `json:"-" gorm:"uniqueIndex:ux_session_open_user"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func (PosSession) TableName() string { return "pos_sessions" }

func (s *PosSession) IsOpen() bool { return s.Status == SessionStatusOpen }

// MethodSales 某支付方式的销售额与订单数
type MethodSales struct {
	Sales  decimal.Decimal `json:"sales"`
	Orders int             `json:"orders"`
}

// SessionSummary 交班对账结果
type SessionSummary struct {
	SessionID            int64                         `json:"session_id"`
	TotalOrders          int                           `json:"total_orders"`
	UnpaidOrders         int                           `json:"unpaid_orders"`
	CancelledOrders      int                           `json:"cancelled_orders"`
	TotalSales           decimal.Decimal               `json:"total_sales"`
	SalesByPaymentMethod map[PaymentMethod]MethodSales `json:"sales_by_payment_method"`
}
