package handler

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/d60-Lab/cafe-pos/internal/model"
	"github.com/d60-Lab/cafe-pos/internal/service"
)

var registerOnce sync.Once

// RegisterValidators 向 gin 的校验器注册枚举校验标签，重复调用无副作用
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
			return model.PaymentMethod(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("kitchen_stage", func(fl validator.FieldLevel) bool {
			return model.KitchenStage(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
			return model.OrderStatus(fl.Field().String()).Valid()
		})
	})
}

// tagErrors 枚举标签校验失败时返回与服务层一致的业务错误
var tagErrors = map[string]error{
	"payment_method": service.ErrInvalidMethod,
	"kitchen_stage":  service.ErrInvalidStage,
	"order_status":   service.ErrInvalidStatus,
}
