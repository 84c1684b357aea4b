package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/d60-Lab/cafe-pos/internal/catalog"
	"github.com/d60-Lab/cafe-pos/internal/model"
	"github.com/d60-Lab/cafe-pos/internal/repository"
	"github.com/d60-Lab/cafe-pos/pkg/logger"
)

// OpenSessionInput 开班参数
type OpenSessionInput struct {
	TerminalID     int64
	UserID         int64
	OpeningBalance *decimal.Decimal
}

// SessionQuery 会话历史查询条件
type SessionQuery struct {
	TerminalID int64
	UserID     int64
	Status     model.SessionStatus
	Limit      int
}

// SessionReport 会话及其对账汇总
type SessionReport struct {
	Session *model.PosSession     `json:"session"`
	Summary *model.SessionSummary `json:"summary"`
}

// SessionService 收银会话账本：开班、关班对账
type SessionService interface {
	OpenSession(ctx context.Context, in OpenSessionInput) (*model.PosSession, error)
	CloseSession(ctx context.Context, sessionID int64, closingBalance *decimal.Decimal) (*SessionReport, error)
	// GetSession 返回会话及读取时刻的实时汇总
	GetSession(ctx context.Context, sessionID int64) (*SessionReport, error)
	CurrentSession(ctx context.Context, terminalID int64) (*model.PosSession, error)
	ListSessions(ctx context.Context, q SessionQuery) ([]*model.PosSession, error)
}

type sessionService struct {
	engine
}

func NewSessionService(store *repository.Store, lookup catalog.Lookup, opts ...Option) SessionService {
	return &sessionService{engine: newEngine(store, lookup, opts)}
}

func (s *sessionService) scopeTerminal() bool { return s.scope == "terminal" || s.scope == "both" }
func (s *sessionService) scopeUser() bool     { return s.scope == "user" || s.scope == "both" }

func (s *sessionService) OpenSession(ctx context.Context, in OpenSessionInput) (session *model.PosSession, err error) {
	ctx, end := startSpan(ctx, "SessionService.OpenSession",
		attribute.Int64("terminal.id", in.TerminalID),
		attribute.Int64("user.id", in.UserID),
	)
	defer func() { end(err) }()

	if in.TerminalID <= 0 {
		return nil, ErrTerminalRequired
	}
	if in.UserID <= 0 {
		return nil, ErrUserRequired
	}
	opening := decimal.Zero
	if in.OpeningBalance != nil {
		if in.OpeningBalance.IsNegative() || !in.OpeningBalance.Equal(in.OpeningBalance.Round(2)) {
			return nil, ErrInvalidAmount.WithDetail("opening_balance %s must be non-negative with at most two decimals", in.OpeningBalance.String())
		}
		opening = *in.OpeningBalance
	}

	if _, err := s.catalog.Terminal(ctx, in.TerminalID); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrTerminalNotFound.WithDetail("terminal %d not found", in.TerminalID)
		}
		return nil, ErrCatalogUnavailable.Wrap(err)
	}

	// 预检查只为给出更明确的错误信息；真正的互斥由唯一索引保证
	if err := s.precheckOpen(ctx, in); err != nil {
		return nil, err
	}

	now := s.now()
	session = &model.PosSession{
		TerminalID:        in.TerminalID,
		ResponsibleUserID: in.UserID,
		OpenDate:          now,
		Status:            model.SessionStatusOpen,
		SaleAmount:        decimal.Zero,
		OpeningBalance:    opening,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if s.scopeTerminal() {
		session.OpenTerminalLock = &in.TerminalID
	}
	if s.scopeUser() {
		session.OpenUserLock = &in.UserID
	}

	err = s.store.Transaction(ctx, func(tx *repository.Repos) error {
		if err := tx.Sessions.Create(ctx, session); err != nil {
			return err
		}
		return tx.Outbox.Add(ctx, "session", session.ID, model.EventSessionOpened, session)
	})
	if err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, ErrSessionAlreadyOpen.WithDetail("an open session already exists for terminal %d or user %d", in.TerminalID, in.UserID)
		}
		return nil, err
	}

	logger.Info("session opened",
		zap.Int64("session_id", session.ID),
		zap.Int64("terminal_id", session.TerminalID),
		zap.Int64("user_id", session.ResponsibleUserID),
	)
	return session, nil
}

func (s *sessionService) precheckOpen(ctx context.Context, in OpenSessionInput) error {
	if s.scopeTerminal() {
		existing, err := s.store.Sessions.FindOpenByTerminal(ctx, in.TerminalID)
		if err == nil {
			return ErrSessionAlreadyOpen.WithDetail("terminal %d already has open session %d", in.TerminalID, existing.ID)
		}
		if !repository.IsNotFound(err) {
			return err
		}
	}
	if s.scopeUser() {
		existing, err := s.store.Sessions.FindOpenByUser(ctx, in.UserID)
		if err == nil {
			return ErrSessionAlreadyOpen.WithDetail("user %d already has open session %d", in.UserID, existing.ID)
		}
		if !repository.IsNotFound(err) {
			return err
		}
	}
	return nil
}

func (s *sessionService) CloseSession(ctx context.Context, sessionID int64, closingBalance *decimal.Decimal) (report *SessionReport, err error) {
	ctx, end := startSpan(ctx, "SessionService.CloseSession", attribute.Int64("session.id", sessionID))
	defer func() { end(err) }()

	if closingBalance != nil && (closingBalance.IsNegative() || !closingBalance.Equal(closingBalance.Round(2))) {
		return nil, ErrInvalidAmount.WithDetail("closing_balance %s must be non-negative with at most two decimals", closingBalance.String())
	}

	err = s.store.Transaction(ctx, func(tx *repository.Repos) error {
		session, err := tx.Sessions.GetByID(ctx, sessionID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrSessionNotFound.WithDetail("session %d not found", sessionID)
			}
			return err
		}
		if !session.IsOpen() {
			return ErrAlreadyClosed.WithDetail("session %d is already closed", sessionID)
		}
		// 先锁会话行，再从订单与支付记录汇总
		open, err := tx.Sessions.TouchOpen(ctx, sessionID)
		if err != nil {
			return err
		}
		if !open {
			return ErrAlreadyClosed.WithDetail("session %d is already closed", sessionID)
		}

		summary, drawerCash, err := summarize(ctx, tx, sessionID)
		if err != nil {
			return err
		}

		closedAt := s.now()
		expected := session.OpeningBalance.Add(drawerCash)
		session.CloseDate = &closedAt
		session.SaleAmount = summary.TotalSales
		session.ExpectedCash = &expected
		if closingBalance != nil {
			closing := *closingBalance
			diff := closing.Sub(expected)
			session.ClosingBalance = &closing
			session.CashDifference = &diff
		}

		closed, err := tx.Sessions.Close(ctx, session)
		if err != nil {
			return err
		}
		if !closed {
			return ErrAlreadyClosed.WithDetail("session %d is already closed", sessionID)
		}
		if err := tx.Outbox.Add(ctx, "session", sessionID, model.EventSessionClosed, summary); err != nil {
			return err
		}
		report = &SessionReport{Session: session, Summary: summary}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("session closed",
		zap.Int64("session_id", sessionID),
		zap.Int("total_orders", report.Summary.TotalOrders),
		zap.Int("unpaid_orders", report.Summary.UnpaidOrders),
		zap.Int("cancelled_orders", report.Summary.CancelledOrders),
		zap.String("total_sales", report.Summary.TotalSales.StringFixed(2)),
	)
	if report.Session.CashDifference != nil && !report.Session.CashDifference.IsZero() {
		logger.Warn("cash drawer difference at close",
			zap.Int64("session_id", sessionID),
			zap.String("difference", report.Session.CashDifference.StringFixed(2)),
		)
	}
	return report, nil
}

// summarize 从订单与支付记录行汇总会话销售额，同时返回钱箱应收现金。
// 只有已结清订单计入销售额与支付方式分布，两者之和因此一致；
// 钱箱现金则包含会话内全部现金收款，未结清订单的部分现金也在钱箱里。
func summarize(ctx context.Context, repos *repository.Repos, sessionID int64) (*model.SessionSummary, decimal.Decimal, error) {
	orders, err := repos.Orders.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	payments, err := repos.Payments.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	summary := &model.SessionSummary{
		SessionID:            sessionID,
		TotalOrders:          len(orders),
		TotalSales:           decimal.Zero,
		SalesByPaymentMethod: make(map[model.PaymentMethod]model.MethodSales, len(model.PaymentMethods)),
	}
	for _, m := range model.PaymentMethods {
		summary.SalesByPaymentMethod[m] = model.MethodSales{Sales: decimal.Zero}
	}

	paidOrders := make(map[int64]bool, len(orders))
	for _, o := range orders {
		switch {
		case o.PaymentStatus == model.PaymentStatusPaid:
			paidOrders[o.ID] = true
			summary.TotalSales = summary.TotalSales.Add(o.TotalAmount)
		case o.Status == model.OrderStatusCancelled:
			summary.CancelledOrders++
		default:
			summary.UnpaidOrders++
		}
	}

	drawerCash := decimal.Zero
	counted := make(map[model.PaymentMethod]map[int64]bool, len(model.PaymentMethods))
	for _, p := range payments {
		if p.Method == model.PaymentMethodCash {
			drawerCash = drawerCash.Add(p.Amount)
		}
		if !paidOrders[p.OrderID] {
			continue
		}
		ms := summary.SalesByPaymentMethod[p.Method]
		ms.Sales = ms.Sales.Add(p.Amount)
		if counted[p.Method] == nil {
			counted[p.Method] = make(map[int64]bool)
		}
		if !counted[p.Method][p.OrderID] {
			counted[p.Method][p.OrderID] = true
			ms.Orders++
		}
		summary.SalesByPaymentMethod[p.Method] = ms
	}
	return summary, drawerCash, nil
}

func (s *sessionService) GetSession(ctx context.Context, sessionID int64) (*SessionReport, error) {
	session, err := s.store.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSessionNotFound.WithDetail("session %d not found", sessionID)
		}
		return nil, err
	}
	summary, _, err := summarize(ctx, s.store.Repos, sessionID)
	if err != nil {
		return nil, err
	}
	return &SessionReport{Session: session, Summary: summary}, nil
}

func (s *sessionService) CurrentSession(ctx context.Context, terminalID int64) (*model.PosSession, error) {
	if terminalID <= 0 {
		return nil, ErrTerminalRequired
	}
	session, err := s.store.Sessions.FindOpenByTerminal(ctx, terminalID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSessionNotFound.WithDetail("terminal %d has no open session", terminalID)
		}
		return nil, err
	}
	return session, nil
}

func (s *sessionService) ListSessions(ctx context.Context, q SessionQuery) ([]*model.PosSession, error) {
	return s.store.Sessions.List(ctx, repository.SessionFilter{
		TerminalID: q.TerminalID,
		UserID:     q.UserID,
		Status:     q.Status,
		Limit:      q.Limit,
	})
}
