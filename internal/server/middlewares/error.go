package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kennteohstorehub/BeepChatBot/internal/server/ginx"
)

// ErrorHandler 处理 handler 通过 c.Error 登记但未写响应的错误
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			ginx.Error(c, http.StatusInternalServerError, c.Errors.Last().Error())
		}
	}
}
