package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/cafe-pos/config"
	_ "github.com/d60-Lab/cafe-pos/docs"
	"github.com/d60-Lab/cafe-pos/internal/api/handler"
	"github.com/d60-Lab/cafe-pos/internal/api/middleware"
)

// Setup 组装中间件与路由
func Setup(cfg *config.Config, h *handler.Handler) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	handler.RegisterValidators()

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.AccessLog(),
		otelgin.Middleware(cfg.Tracing.ServiceName),
		cors.New(cors.Config{
			AllowOrigins:     cfg.Server.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
		}),
		gzip.Gzip(gzip.DefaultCompression),
	)
	if cfg.Server.RateLimit > 0 {
		r.Use(middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst).Middleware())
	}

	r.GET("/health", h.Health)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	till := []string{middleware.RolePOSUser, middleware.RoleAdmin}
	kitchen := []string{middleware.RolePOSUser, middleware.RoleAdmin, middleware.RoleKitchen}

	v1 := r.Group("/api/v1", middleware.Auth(cfg.JWT.Secret, cfg.JWT.Issuer))
	{
		sessions := v1.Group("/sessions", middleware.RequireRoles(till...))
		sessions.POST("", h.OpenSession)
		sessions.GET("", h.ListSessions)
		sessions.GET("/:id", h.GetSession)
		sessions.POST("/:id/close", h.CloseSession)

		terminals := v1.Group("/terminals", middleware.RequireRoles(till...))
		terminals.GET("/:id/session", h.CurrentSession)
		terminals.GET("/:id/payment-methods", h.PaymentMethods)

		orders := v1.Group("/orders")
		orders.POST("", middleware.RequireRoles(till...), h.CreateOrder)
		orders.POST("/self-service", middleware.RequireRoles(till...), h.PlaceSelfOrder)
		orders.GET("", middleware.RequireRoles(kitchen...), h.ListOrders)
		orders.GET("/:id", middleware.RequireRoles(kitchen...), h.GetOrder)
		orders.PATCH("/:id", middleware.RequireRoles(till...), h.UpdateDetails)
		orders.POST("/:id/lines", middleware.RequireRoles(till...), h.AddLines)
		orders.PATCH("/:id/status", middleware.RequireRoles(till...), h.UpdateStatus)
		orders.POST("/:id/send-to-kitchen", middleware.RequireRoles(till...), h.SendToKitchen)
		orders.POST("/:id/payments", middleware.RequireRoles(till...), h.ProcessPayment)
		orders.PATCH("/:id/kitchen-stage", middleware.RequireRoles(kitchen...), h.AdvanceStage)
		orders.POST("/:id/lines/:line_id/prepared", middleware.RequireRoles(kitchen...), h.MarkLinePrepared)

		v1.GET("/kitchen/orders", middleware.RequireRoles(kitchen...), h.KitchenQueue)
		v1.GET("/kitchen/stats", middleware.RequireRoles(kitchen...), h.KitchenStats)
	}
	return r
}
