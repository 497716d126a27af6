package escalate

import (
	"context"
	"fmt"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/escalation"
	"github.com/kennteohstorehub/BeepChatBot/internal/domains/common"
	"github.com/kennteohstorehub/BeepChatBot/internal/framework"
	"github.com/kennteohstorehub/BeepChatBot/pkg/errorutil"
)

// Handler escalate：重试耗尽后转人工，只执行一次
type Handler struct {
	base *framework.BaseHandler
	deps *common.Deps
	data common.EscalateData
}

// NewHandler 解析并校验业务数据
func NewHandler(ctx context.Context, base *framework.BaseHandler, deps *common.Deps) (framework.BusinessHandler, error) {
	h := &Handler{base: base, deps: deps}
	if err := base.DecodePayload(&h.data); err != nil {
		return nil, errorutil.NonRetriableCause("invalid escalate payload", err)
	}
	if h.data.ConversationID == "" {
		return nil, errorutil.NonRetriable("conversation_id is required")
	}
	return h, nil
}

// Handle 升级失败不重试（会话已经中断，尽力而为）
func (h *Handler) Handle(ctx context.Context) ([]byte, error) {
	reason := h.data.Reason
	if h.data.Attempts > 0 {
		reason = fmt.Sprintf("%s after %d attempts", reason, h.data.Attempts)
	}
	if h.data.OrderNumber != "" {
		reason = fmt.Sprintf("%s (order %s)", reason, h.data.OrderNumber)
	}

	err := h.deps.Lookup.Escalate(ctx, escalation.Case{
		ConversationID: h.data.ConversationID,
		UserID:         h.data.UserID,
		OrderNumber:    h.data.OrderNumber,
		Reason:         reason,
	})
	if err != nil {
		return h.base.Fail(ctx, nil, errorutil.NonRetriableCause("escalation incomplete", err))
	}
	return h.base.Succeed(ctx, map[string]string{"escalated": h.data.ConversationID})
}
