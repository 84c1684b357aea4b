package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/d60-Lab/cafe-pos/internal/model"
	"github.com/d60-Lab/cafe-pos/internal/service"
	"github.com/d60-Lab/cafe-pos/pkg/response"
)

type paymentRequest struct {
	Method         model.PaymentMethod `json:"method" binding:"required,payment_method"`
	Amount         *decimal.Decimal    `json:"amount" swaggertype:"string" example:"120.50"`
	AmountReceived *decimal.Decimal    `json:"amount_received" swaggertype:"string" example:"150.00"`
}

// ProcessPayment 对订单收款；不传 amount 表示结清余额，返回含全部支付记录的订单
// @Summary 收款
// @Tags 收款
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Param request body paymentRequest true "收款信息"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/orders/{id}/payments [post]
func (h *Handler) ProcessPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req paymentRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.payments.ProcessPayment(c.Request.Context(), service.PaymentInput{
		OrderID:        id,
		Method:         req.Method,
		Amount:         req.Amount,
		AmountReceived: req.AmountReceived,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result.Order)
}

// PaymentMethods 终端启用的支付方式
// @Summary 终端支付方式
// @Tags 收款
// @Produce json
// @Security BearerAuth
// @Param id path int true "终端ID"
// @Success 200 {object} response.Response{data=[]service.MethodOption}
// @Failure 404 {object} response.Response
// @Router /api/v1/terminals/{id}/payment-methods [get]
func (h *Handler) PaymentMethods(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	methods, err := h.payments.PaymentMethods(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, methods)
}
