package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/d60-Lab/cafe-pos/internal/api/middleware"
	"github.com/d60-Lab/cafe-pos/internal/model"
	"github.com/d60-Lab/cafe-pos/internal/service"
	"github.com/d60-Lab/cafe-pos/pkg/response"
)

type openSessionRequest struct {
	TerminalID     int64            `json:"terminal_id" binding:"required,gt=0"`
	UserID         int64            `json:"user_id" binding:"omitempty,gt=0"`
	OpeningBalance *decimal.Decimal `json:"opening_balance" swaggertype:"string" example:"200.00"`
}

type closeSessionRequest struct {
	ClosingBalance *decimal.Decimal `json:"closing_balance" swaggertype:"string" example:"475.00"`
}

// OpenSession 开班。user_id 缺省为当前登录用户，只有管理员可以替他人开班
// @Summary 开班
// @Tags 收银会话
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body openSessionRequest true "开班信息"
// @Success 201 {object} response.Response{data=model.PosSession}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/sessions [post]
func (h *Handler) OpenSession(c *gin.Context) {
	var req openSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	caller := middleware.UserID(c)
	userID := req.UserID
	if userID == 0 {
		userID = caller
	}
	if userID != caller && middleware.Role(c) != middleware.RoleAdmin {
		response.Forbidden(c, "only admin can open a session for another user")
		return
	}
	session, err := h.sessions.OpenSession(c.Request.Context(), service.OpenSessionInput{
		TerminalID:     req.TerminalID,
		UserID:         userID,
		OpeningBalance: req.OpeningBalance,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// CloseSession 关班并生成对账汇总
// @Summary 关班
// @Tags 收银会话
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "会话ID"
// @Param request body closeSessionRequest false "钱箱实点金额"
// @Success 200 {object} response.Response{data=service.SessionReport}
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/sessions/{id}/close [post]
func (h *Handler) CloseSession(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req closeSessionRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	report, err := h.sessions.CloseSession(c.Request.Context(), id, req.ClosingBalance)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}

// GetSession 会话详情与实时汇总
// @Summary 会话详情
// @Tags 收银会话
// @Produce json
// @Security BearerAuth
// @Param id path int true "会话ID"
// @Success 200 {object} response.Response{data=service.SessionReport}
// @Failure 404 {object} response.Response
// @Router /api/v1/sessions/{id} [get]
func (h *Handler) GetSession(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	report, err := h.sessions.GetSession(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}

// CurrentSession 终端当前打开的会话
// @Summary 终端当前会话
// @Tags 收银会话
// @Produce json
// @Security BearerAuth
// @Param id path int true "终端ID"
// @Success 200 {object} response.Response{data=model.PosSession}
// @Failure 404 {object} response.Response
// @Router /api/v1/terminals/{id}/session [get]
func (h *Handler) CurrentSession(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	session, err := h.sessions.CurrentSession(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, session)
}

// ListSessions 会话历史
// @Summary 会话列表
// @Tags 收银会话
// @Produce json
// @Security BearerAuth
// @Param terminal_id query int false "终端ID"
// @Param user_id query int false "收银员ID"
// @Param status query string false "open 或 closed"
// @Param limit query int false "条数上限" default(50)
// @Success 200 {object} response.Response{data=[]model.PosSession}
// @Failure 400 {object} response.Response
// @Router /api/v1/sessions [get]
func (h *Handler) ListSessions(c *gin.Context) {
	terminalID, ok := queryID(c, "terminal_id")
	if !ok {
		return
	}
	userID, ok := queryID(c, "user_id")
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	status := model.SessionStatus(c.Query("status"))
	switch status {
	case "", model.SessionStatusOpen, model.SessionStatusClosed:
	default:
		response.BadRequest(c, "status must be open or closed")
		return
	}
	list, err := h.sessions.ListSessions(c.Request.Context(), service.SessionQuery{
		TerminalID: terminalID,
		UserID:     userID,
		Status:     status,
		Limit:      limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}
