package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/cafe-pos/internal/model"
	"github.com/d60-Lab/cafe-pos/pkg/response"
)

type advanceStageRequest struct {
	Stage model.KitchenStage `json:"kitchen_stage" binding:"required,kitchen_stage"`
}

// AdvanceStage 手动推进后厨阶段（只能推进到下一阶段）
// @Summary 推进后厨阶段
// @Tags 后厨
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Param request body advanceStageRequest true "目标阶段"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/orders/{id}/kitchen-stage [patch]
func (h *Handler) AdvanceStage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req advanceStageRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.kitchen.AdvanceStage(c.Request.Context(), id, req.Stage)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, order)
}

// MarkLinePrepared 标记订单行已出餐，阶段随之推导
// @Summary 订单行出餐
// @Tags 后厨
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Param line_id path int true "订单行ID"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/orders/{id}/lines/{line_id}/prepared [post]
func (h *Handler) MarkLinePrepared(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	lineID, ok := pathID(c, "line_id")
	if !ok {
		return
	}
	order, err := h.kitchen.MarkLinePrepared(c.Request.Context(), id, lineID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, order)
}

// KitchenQueue 后厨待办队列，按下单时间先后
// @Summary 后厨队列
// @Tags 后厨
// @Produce json
// @Security BearerAuth
// @Param stage query string false "后厨阶段"
// @Param limit query int false "条数上限" default(50)
// @Success 200 {object} response.Response{data=[]model.Order}
// @Failure 400 {object} response.Response
// @Router /api/v1/kitchen/orders [get]
func (h *Handler) KitchenQueue(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	list, err := h.kitchen.Queue(c.Request.Context(), model.KitchenStage(c.Query("stage")), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// KitchenStats 后厨看板计数
// @Summary 后厨统计
// @Tags 后厨
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=service.KitchenStats}
// @Failure 500 {object} response.Response
// @Router /api/v1/kitchen/stats [get]
func (h *Handler) KitchenStats(c *gin.Context) {
	stats, err := h.kitchen.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}
