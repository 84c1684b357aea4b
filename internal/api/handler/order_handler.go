package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/cafe-pos/internal/model"
	"github.com/d60-Lab/cafe-pos/internal/service"
	"github.com/d60-Lab/cafe-pos/pkg/response"
)

type createOrderRequest struct {
	SessionID    int64               `json:"session_id" binding:"required,gt=0"`
	TableID      *int64              `json:"table_id" binding:"omitempty,gt=0"`
	CustomerName *string             `json:"customer_name" binding:"omitempty,max=128"`
	Notes        *string             `json:"notes"`
	Lines        []service.LineInput `json:"lines"`
}

type addLinesRequest struct {
	Lines []service.LineInput `json:"lines"`
}

type updateStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required,order_status"`
}

type updateOrderRequest struct {
	CustomerName *string `json:"customer_name" binding:"omitempty,max=128"`
	Notes        *string `json:"notes"`
}

// CreateOrder 在打开的会话中下单
// @Summary 创建订单
// @Tags 订单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createOrderRequest true "订单信息"
// @Success 201 {object} response.Response{data=model.Order}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/orders [post]
func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.orders.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		SessionID:    req.SessionID,
		TableID:      req.TableID,
		CustomerName: req.CustomerName,
		Notes:        req.Notes,
		Lines:        req.Lines,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, order)
}

// PlaceSelfOrder 扫码自助点餐：必须指定桌台，下单即送厨
// @Summary 自助点餐
// @Tags 订单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createOrderRequest true "订单信息（table_id 必填）"
// @Success 201 {object} response.Response{data=model.Order}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/orders/self-service [post]
func (h *Handler) PlaceSelfOrder(c *gin.Context) {
	var req createOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.orders.PlaceSelfOrder(c.Request.Context(), service.CreateOrderInput{
		SessionID:    req.SessionID,
		TableID:      req.TableID,
		CustomerName: req.CustomerName,
		Notes:        req.Notes,
		Lines:        req.Lines,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, order)
}

// AddLines 向未结束的订单追加订单行
// @Summary 加菜
// @Tags 订单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Param request body addLinesRequest true "追加的订单行"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/orders/{id}/lines [post]
func (h *Handler) AddLines(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req addLinesRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.orders.AddLines(c.Request.Context(), id, req.Lines)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, order)
}

// GetOrder 查询订单详情（含订单行与收款记录）
// @Summary 订单详情
// @Tags 订单
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 404 {object} response.Response
// @Router /api/v1/orders/{id} [get]
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, order)
}

// ListOrders 按会话、桌台、状态过滤订单
// @Summary 订单列表
// @Tags 订单
// @Produce json
// @Security BearerAuth
// @Param session_id query int false "会话ID"
// @Param table_id query int false "桌台ID"
// @Param status query string false "订单状态"
// @Param kitchen_stage query string false "后厨阶段"
// @Param limit query int false "条数上限" default(50)
// @Success 200 {object} response.Response{data=[]model.Order}
// @Failure 400 {object} response.Response
// @Router /api/v1/orders [get]
func (h *Handler) ListOrders(c *gin.Context) {
	sessionID, ok := queryID(c, "session_id")
	if !ok {
		return
	}
	tableID, ok := queryID(c, "table_id")
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	list, err := h.orders.ListOrders(c.Request.Context(), service.OrderQuery{
		SessionID:    sessionID,
		TableID:      tableID,
		Status:       model.OrderStatus(c.Query("status")),
		KitchenStage: model.KitchenStage(c.Query("kitchen_stage")),
		Limit:        limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// UpdateDetails 修改顾客名与备注，空字符串表示清空
// @Summary 修改订单信息
// @Tags 订单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Param request body updateOrderRequest true "可修改字段"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/orders/{id} [patch]
func (h *Handler) UpdateDetails(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.orders.UpdateDetails(c.Request.Context(), id, service.OrderPatch{
		CustomerName: req.CustomerName,
		Notes:        req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, order)
}

// UpdateStatus 订单状态迁移
// @Summary 修改订单状态
// @Tags 订单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Param request body updateStatusRequest true "目标状态"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/orders/{id}/status [patch]
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.orders.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, order)
}

// SendToKitchen 送厨，后厨阶段置为 to_cook
// @Summary 送厨
// @Tags 订单
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/orders/{id}/send-to-kitchen [post]
func (h *Handler) SendToKitchen(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.SendToKitchen(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, order)
}
