package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kennteohstorehub/BeepChatBot/internal/server/ginx"
)

const checkTimeout = 3 * time.Second

// Checker 依赖健康检查
type Checker interface {
	Check(ctx context.Context) map[string]error
	BreakerStates() map[string]string
}

// Handler 健康检查
type Handler struct {
	service string
	checker Checker
}

// NewHandler 创建健康检查处理器
func NewHandler(service string, checker Checker) *Handler {
	return &Handler{service: service, checker: checker}
}

// Status 健康检查结果
type Status struct {
	Status       string            `json:"status"`
	Service      string            `json:"service"`
	Dependencies map[string]string `json:"dependencies"`
	Breakers     map[string]string `json:"breakers"`
	Timestamp    time.Time         `json:"timestamp"`
}

// Get 依赖全部可用返回 200，否则 503；熔断打开不影响健康状态
// GET /health
func (h *Handler) Get(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	st := Status{
		Status:       "healthy",
		Service:      h.service,
		Dependencies: make(map[string]string),
		Breakers:     h.checker.BreakerStates(),
		Timestamp:    time.Now().UTC(),
	}
	for name, err := range h.checker.Check(ctx) {
		if err != nil {
			st.Status = "unhealthy"
			st.Dependencies[name] = err.Error()
			continue
		}
		st.Dependencies[name] = "ok"
	}

	if st.Status != "healthy" {
		ginx.ErrorWithData(c, http.StatusServiceUnavailable, "unhealthy", st)
		return
	}
	ginx.Success(c, st)
}
