package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/cafe-pos/internal/model"
)

// SessionFilter 会话历史查询条件
type SessionFilter struct {
	TerminalID int64
	UserID     int64
	Status     model.SessionStatus
	Limit      int
}

// SessionRepository 收银会话仓储
type SessionRepository interface {
	Create(ctx context.Context, s *model.PosSession) error
	GetByID(ctx context.Context, id int64) (*model.PosSession, error)
	// FindOpenByTerminal 终端当前打开的会话
	FindOpenByTerminal(ctx context.Context, terminalID int64) (*model.PosSession, error)
	// FindOpenByUser 收银员当前打开的会话
	FindOpenByUser(ctx context.Context, userID int64) (*model.PosSession, error)
	// TouchOpen 锁定仍为 open 的会话行直到事务结束；会话已关闭返回 false。
	// 下单、收款与关班都先调用它，关班因此不会漏算并发提交的订单。
	TouchOpen(ctx context.Context, id int64) (bool, error)
	// Close 仅当会话仍为 open 时写入关闭信息；已被关闭返回 false
	Close(ctx context.Context, s *model.PosSession) (bool, error)
	List(ctx context.Context, f SessionFilter) ([]*model.PosSession, error)
}

type sessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &sessionRepository{db: db} }

func (r *sessionRepository) Create(ctx context.Context, s *model.PosSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sessionRepository) GetByID(ctx context.Context, id int64) (*model.PosSession, error) {
	var s model.PosSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepository) FindOpenByTerminal(ctx context.Context, terminalID int64) (*model.PosSession, error) {
	return r.findOpen(ctx, "terminal_id = ?", terminalID)
}

func (r *sessionRepository) FindOpenByUser(ctx context.Context, userID int64) (*model.PosSession, error) {
	return r.findOpen(ctx, "responsible_user_id = ?", userID)
}

func (r *sessionRepository) findOpen(ctx context.Context, cond string, arg int64) (*model.PosSession, error) {
	var s model.PosSession
	err := r.db.WithContext(ctx).
		Where(cond, arg).
		Where("status = ?", model.SessionStatusOpen).
		Order("open_date DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepository) TouchOpen(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.PosSession{}).
		Where("id = ? AND status = ?", id, model.SessionStatusOpen).
		Update("updated_at", time.Now().UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *sessionRepository) Close(ctx context.Context, s *model.PosSession) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.PosSession{}).
		Where("id = ? AND status = ?", s.ID, model.SessionStatusOpen).
		Updates(map[string]any{
			"status":             model.SessionStatusClosed,
			"close_date":         s.CloseDate,
			"sale_amount":        s.SaleAmount,
			"closing_balance":    s.ClosingBalance,
			"expected_cash":      s.ExpectedCash,
			"cash_difference":    s.CashDifference,
			"open_terminal_lock": gorm.Expr("NULL"),
			"open_user_lock":     gorm.Expr("NULL"),
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	s.Status = model.SessionStatusClosed
	s.OpenTerminalLock = nil
	s.OpenUserLock = nil
	return true, nil
}

func (r *sessionRepository) List(ctx context.Context, f SessionFilter) ([]*model.PosSession, error) {
	q := r.db.WithContext(ctx).Model(&model.PosSession{})
	if f.TerminalID > 0 {
		q = q.Where("terminal_id = ?", f.TerminalID)
	}
	if f.UserID > 0 {
		q = q.Where("responsible_user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	var sessions []*model.PosSession
	err := q.Order("open_date DESC").Order("id DESC").Limit(limit).Find(&sessions).Error
	return sessions, err
}
