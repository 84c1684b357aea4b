// Package errs 定义业务错误分类，供 service 返回、handler 翻译为 HTTP 状态码。
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误大类
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindDependency Kind = "dependency"
	KindInternal   Kind = "internal"
)

// HTTPStatus 返回该类错误对应的 HTTP 状态码
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error 带机器可读 Code 的业务错误。errors.Is 按 Code 比较，
// 因此 WithDetail 派生出的错误仍然匹配原始哨兵错误。
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithDetail 复制错误并替换描述
func (e *Error) WithDetail(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap 复制错误并挂上底层原因（不会暴露给调用方的响应体）
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string) *Error { return New(KindValidation, code, message) }
func NotFound(code, message string) *Error   { return New(KindNotFound, code, message) }
func Conflict(code, message string) *Error   { return New(KindConflict, code, message) }
func Dependency(code, message string) *Error { return New(KindDependency, code, message) }

// From 提取错误链中的 *Error；非业务错误返回 nil
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// KindOf 返回错误类别，未知错误视为 internal
func KindOf(err error) Kind {
	if e := From(err); e != nil {
		return e.Kind
	}
	return KindInternal
}
