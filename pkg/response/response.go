package response

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/cafe-pos/pkg/errs"
	"github.com/d60-Lab/cafe-pos/pkg/logger"
)

// Response 统一响应结构
type Response struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Kind      string `json:"kind,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Data      any    `json:"data,omitempty"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: http.StatusOK, Message: "success", Data: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Code: http.StatusCreated, Message: "created", Data: data})
}

func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Code: http.StatusBadRequest, Message: msg, Kind: string(errs.KindValidation), ErrorCode: "BAD_REQUEST",
	})
}

func Unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Code: http.StatusUnauthorized, Message: msg, ErrorCode: "UNAUTHORIZED"})
}

func Forbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, Response{Code: http.StatusForbidden, Message: msg, ErrorCode: "FORBIDDEN"})
}

func TooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{Code: http.StatusTooManyRequests, Message: "too many requests", ErrorCode: "RATE_LIMITED"})
}

// InternalError 记录并上报未知错误，响应体只给出通用描述
func InternalError(c *gin.Context, err error) {
	logger.Error("internal error",
		zap.Error(err),
		zap.String("path", c.FullPath()),
		zap.String("request_id", c.GetString("request_id")),
	)
	if hub := sentry.GetHubFromContext(c.Request.Context()); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
		Code: http.StatusInternalServerError, Message: "internal server error", Kind: string(errs.KindInternal), ErrorCode: "INTERNAL",
	})
}

// Error 将业务错误翻译为对应 HTTP 状态码；非业务错误按 500 处理
func Error(c *gin.Context, err error) {
	e := errs.From(err)
	if e == nil {
		InternalError(c, err)
		return
	}
	if e.Kind == errs.KindDependency {
		logger.Warn("dependency failure", zap.Error(err), zap.String("code", e.Code))
	}
	status := e.Kind.HTTPStatus()
	c.AbortWithStatusJSON(status, Response{Code: status, Message: e.Message, Kind: string(e.Kind), ErrorCode: e.Code})
}
