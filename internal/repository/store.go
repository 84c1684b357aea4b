package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrStaleVersion 乐观锁冲突：行在读取之后被其他事务修改
	ErrStaleVersion = errors.New("stale version")
	// ErrTableBusy 桌台被其他订单占用
	ErrTableBusy = errors.New("table occupied by another order")
)

// Repos 绑定在同一个 *gorm.DB（连接或事务）上的仓储集合
type Repos struct {
	Orders    OrderRepository
	Payments  PaymentRepository
	Sessions  SessionRepository
	Tables    TableRepository
	Terminals TerminalRepository
	Products  ProductRepository
	Outbox    OutboxRepository
}

func NewRepos(db *gorm.DB) *Repos {
	return &Repos{
		Orders:    NewOrderRepository(db),
		Payments:  NewPaymentRepository(db),
		Sessions:  NewSessionRepository(db),
		Tables:    NewTableRepository(db),
		Terminals: NewTerminalRepository(db),
		Products:  NewProductRepository(db),
		Outbox:    NewOutboxRepository(db),
	}
}

// Store 事务边界。所有多行写入都通过 Transaction 完成，失败整体回滚。
type Store struct {
	*Repos
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{Repos: NewRepos(db), db: db}
}

func (s *Store) DB() *gorm.DB { return s.db }

// Transaction 在单个事务内执行 fn；fn 返回错误即回滚
func (s *Store) Transaction(ctx context.Context, fn func(tx *Repos) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepos(tx))
	})
}

// Ping 健康检查
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsNotFound 记录不存在
func IsNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }

// IsDuplicateKey 唯一约束冲突（postgres 23505 / sqlite UNIQUE constraint）
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

func isPostgres(db *gorm.DB) bool { return db.Dialector.Name() == "postgres" }
