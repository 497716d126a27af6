package middlewares

import (
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kennteohstorehub/BeepChatBot/pkg/logger"
)

// RequestID 为每个请求分配 ID（沿用调用方传入的 X-Request-ID）
func RequestID() gin.HandlerFunc {
	return requestid.New(requestid.WithGenerator(func() string {
		return uuid.New().String()
	}))
}

// Logger 请求日志，request id 作为 trace_id 写入 context
func Logger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := logger.WithValue(c.Request.Context(), logger.KeyTraceID, requestid.Get(c))
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		log.Infof(ctx, "[HTTP] %s %s status=%d duration=%v",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
