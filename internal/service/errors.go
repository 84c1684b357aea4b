package service

import "github.com/d60-Lab/cafe-pos/pkg/errs"

// 业务错误。返回时通常经 WithDetail 补充上下文，errors.Is 仍按 Code 匹配。
var (
	ErrSessionRequired    = errs.Validation("SESSION_REQUIRED", "session_id is required")
	ErrSessionNotFound    = errs.NotFound("SESSION_NOT_FOUND", "session not found")
	ErrSessionNotOpen     = errs.Conflict("SESSION_NOT_OPEN", "session is not open")
	ErrSessionAlreadyOpen = errs.Conflict("SESSION_ALREADY_OPEN", "an open session already exists")
	ErrAlreadyClosed      = errs.Conflict("SESSION_ALREADY_CLOSED", "session is already closed")
	ErrTerminalRequired   = errs.Validation("TERMINAL_REQUIRED", "terminal_id is required")
	ErrUserRequired       = errs.Validation("USER_REQUIRED", "user_id is required")
	ErrTerminalNotFound   = errs.NotFound("TERMINAL_NOT_FOUND", "terminal not found")

	ErrEmptyOrder        = errs.Validation("EMPTY_ORDER", "order must contain at least one line")
	ErrInvalidQuantity   = errs.Validation("INVALID_QUANTITY", "quantity must be at least 1")
	ErrProductNotFound   = errs.NotFound("PRODUCT_NOT_FOUND", "product not found")
	ErrOrderNotFound     = errs.NotFound("ORDER_NOT_FOUND", "order not found")
	ErrInvalidStatus     = errs.Validation("INVALID_STATUS", "unknown order status")
	ErrIllegalTransition = errs.Conflict("ILLEGAL_TRANSITION", "illegal order status transition")
	ErrOrderClosed       = errs.Conflict("ORDER_CLOSED", "order is completed or cancelled")
	ErrTableNotFound     = errs.NotFound("TABLE_NOT_FOUND", "table not found")
	ErrTableOccupied     = errs.Conflict("TABLE_OCCUPIED", "table is occupied by another order")
	ErrTableRequired     = errs.Validation("TABLE_REQUIRED", "table_id is required for self-service orders")
	ErrOrderHasPayments  = errs.Conflict("ORDER_HAS_PAYMENTS", "order with recorded payments cannot be cancelled")

	ErrLineNotFound           = errs.NotFound("LINE_NOT_FOUND", "order line not found")
	ErrInvalidStage           = errs.Validation("INVALID_STAGE", "unknown kitchen stage")
	ErrInvalidStageTransition = errs.Conflict("INVALID_STAGE_TRANSITION", "illegal kitchen stage transition")

	ErrAlreadyPaid        = errs.Conflict("ALREADY_PAID", "order is already paid")
	ErrInvalidMethod      = errs.Validation("INVALID_METHOD", "payment method must be cash, digital or upi")
	ErrMethodDisabled     = errs.Conflict("METHOD_DISABLED", "payment method is disabled on this terminal")
	ErrInvalidAmount      = errs.Validation("INVALID_AMOUNT", "amount must be positive with at most two decimals")
	ErrOverpayment        = errs.Validation("OVERPAYMENT", "amount exceeds the outstanding balance")
	ErrInsufficientTender = errs.Validation("INSUFFICIENT_TENDER", "amount_received is less than amount")

	ErrConcurrentUpdate   = errs.Conflict("CONCURRENT_UPDATE", "order was modified concurrently, retry the request")
	ErrCatalogUnavailable = errs.Dependency("CATALOG_UNAVAILABLE", "catalog lookup failed")
)
