package model

import "time"

// 事件类型
const (
	EventOrderCreated        = "order.created"
	EventOrderLinesAdded     = "order.lines_added"
	EventOrderStatusChanged  = "order.status_changed"
	EventOrderUpdated        = "order.updated"
	EventKitchenStageChanged = "order.kitchen_stage_changed"
	EventLinePrepared        = "order.line_prepared"
	EventPaymentProcessed    = "payment.processed"
	EventOrderPaid           = "order.paid"
	EventSessionOpened       = "session.opened"
	EventSessionClosed       = "session.closed"
)

// Outbox 状态
const (
	OutboxPending    = "pending"
	OutboxProcessing = "processing"
	OutboxDone       = "done"
)

// Outbox 事件外发盒，与业务写入同一事务落库，由 relay 异步推送给看板/前台
type Outbox struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)"`
	Aggregate   string     `gorm:"type:varchar(16);not null"` // order | session
	AggregateID int64      `gorm:"index:idx_outbox_aggregate;not null"`
	EventType   string     `gorm:"type:varchar(48);not null"`
	Payload     string     `gorm:"type:text;not null"`
	Status      string     `gorm:"type:varchar(16);index"` // pending, processing, done
	CreatedAt   time.Time  `gorm:"index"`
	ProcessedAt *time.Time
	Attempts    int
}

func (Outbox) TableName() string { return "outbox" }
