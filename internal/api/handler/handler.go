package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/d60-Lab/cafe-pos/internal/service"
	"github.com/d60-Lab/cafe-pos/pkg/response"
)

// Pinger 健康检查依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler 聚合四个账本服务，对外暴露 REST 接口
type Handler struct {
	db       Pinger
	orders   service.OrderService
	kitchen  service.KitchenService
	payments service.PaymentService
	sessions service.SessionService
}

func NewHandler(db Pinger, orders service.OrderService, kitchen service.KitchenService,
	payments service.PaymentService, sessions service.SessionService) *Handler {
	return &Handler{db: db, orders: orders, kitchen: kitchen, payments: payments, sessions: sessions}
}

// Health 存活探测
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		response.InternalError(c, fmt.Errorf("db ping: %w", err))
		return
	}
	response.Success(c, gin.H{"status": "ok"})
}

// pathID 解析正整数路径参数，失败时已写入 400
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

// queryID 解析可选的正整数查询参数，缺省为 0
func queryID(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		response.BadRequest(c, "invalid limit")
		return 0, false
	}
	return n, true
}

// bindJSON 绑定请求体，校验失败时写入 400 并列出字段
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			if domainErr, ok := tagErrors[fe.Tag()]; ok {
				response.Error(c, domainErr)
				return false
			}
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		response.BadRequest(c, strings.Join(fields, "; "))
		return false
	}
	response.BadRequest(c, "malformed request body")
	return false
}
