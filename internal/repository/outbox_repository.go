package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/cafe-pos/internal/model"
)

// OutboxRepository 事件外发盒
type OutboxRepository interface {
	// Add 在当前事务内追加事件
	Add(ctx context.Context, aggregate string, aggregateID int64, eventType string, payload any) error
	// Claim 认领一批 pending 事件并置为 processing
	Claim(ctx context.Context, limit int) ([]model.Outbox, error)
	MarkDone(ctx context.Context, ids []string) error
	// Requeue 发布失败的事件放回 pending，累计重试次数
	Requeue(ctx context.Context, ids []string) error
	// RecoverStale 将长时间停留在 processing 的事件放回 pending（relay 中途退出）
	RecoverStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

type outboxRepository struct{ db *gorm.DB }

func NewOutboxRepository(db *gorm.DB) OutboxRepository { return &outboxRepository{db: db} }

func (r *outboxRepository) Add(ctx context.Context, aggregate string, aggregateID int64, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	out := &model.Outbox{
		ID:          uuid.New().String(),
		Aggregate:   aggregate,
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     string(body),
		Status:      model.OutboxPending,
		CreatedAt:   time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(out).Error
}

func (r *outboxRepository) Claim(ctx context.Context, limit int) ([]model.Outbox, error) {
	var batch []model.Outbox
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := `
            SELECT id, aggregate, aggregate_id, event_type, payload, status, created_at, attempts
            FROM outbox
            WHERE status = ?
            ORDER BY created_at, id
            LIMIT ?`
		// postgres 下多个 relay 并行认领互不阻塞；sqlite 单连接天然串行
		if isPostgres(tx) {
			q += " FOR UPDATE SKIP LOCKED"
		}
		if err := tx.Raw(q, model.OutboxPending, limit).Scan(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		ids := make([]string, len(batch))
		for i, b := range batch {
			ids[i] = b.ID
		}
		return tx.Model(&model.Outbox{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"status": model.OutboxProcessing, "processed_at": time.Now().UTC()}).Error
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (r *outboxRepository) MarkDone(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.Outbox{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"status": model.OutboxDone, "processed_at": time.Now().UTC()}).Error
}

func (r *outboxRepository) Requeue(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.Outbox{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"status": model.OutboxPending, "attempts": gorm.Expr("attempts + 1")}).Error
}

func (r *outboxRepository) RecoverStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Outbox{}).
		Where("status = ? AND processed_at < ?", model.OutboxProcessing, time.Now().UTC().Add(-olderThan)).
		Update("status", model.OutboxPending)
	return res.RowsAffected, res.Error
}
