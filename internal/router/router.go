package router

import (
	"net/http"

	"github.com/payflow-core/internal/config"
	publichandlers "github.com/payflow-core/internal/http/handlers/public"
	"github.com/payflow-core/internal/logger"
	"github.com/payflow-core/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		api.GET("/gateways", publicHandler.ListGateways)

		payments := api.Group("/payments")
		{
			payments.POST("", publicHandler.ProcessPayment)
			payments.GET("", publicHandler.ListPayments)
			payments.GET("/:id", publicHandler.GetPayment)
			payments.GET("/:id/status", publicHandler.CheckStatus)
			payments.GET("/:id/refunds", publicHandler.ListRefunds)
			payments.POST("/:id/validate", publicHandler.ValidatePayment)
			payments.POST("/:id/cancel", publicHandler.CancelPayment)
			payments.POST("/:id/refund", publicHandler.RefundPayment)
		}
	}

	return r
}
