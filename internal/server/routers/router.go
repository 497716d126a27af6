package routers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kennteohstorehub/BeepChatBot/internal/server/handlers/health"
	"github.com/kennteohstorehub/BeepChatBot/internal/server/handlers/webhook"
	"github.com/kennteohstorehub/BeepChatBot/internal/server/middlewares"
	"github.com/kennteohstorehub/BeepChatBot/pkg/logger"
)

// SetupRoutes 配置路由；metrics 为 nil 时不暴露 /metrics
func SetupRoutes(
	webhookHandler *webhook.Handler,
	healthHandler *health.Handler,
	metrics http.Handler,
	log logger.Logger,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.Logger(log))
	r.Use(middlewares.ErrorHandler())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "orderbot",
			"endpoints": gin.H{
				"webhook": "POST /webhook",
				"health":  "GET /health",
				"metrics": "GET /metrics",
			},
		})
	})
	r.GET("/health", healthHandler.Get)
	r.POST("/webhook", webhookHandler.Receive)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	return r
}

// SetupMetricsRoutes worker 进程的运维端口：仅健康检查与指标
func SetupMetricsRoutes(healthHandler *health.Handler, metrics http.Handler, log logger.Logger) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.Logger(log))

	r.GET("/health", healthHandler.Get)
	r.GET("/metrics", gin.WrapH(metrics))

	return r
}
