package resolve

import (
	"context"
	"errors"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/extract"
	"github.com/kennteohstorehub/BeepChatBot/internal/business/lookup"
	"github.com/kennteohstorehub/BeepChatBot/internal/business/platform"
	"github.com/kennteohstorehub/BeepChatBot/internal/domains/common"
	"github.com/kennteohstorehub/BeepChatBot/internal/framework"
	"github.com/kennteohstorehub/BeepChatBot/pkg/errorutil"
)

// Handler resolve_order：解析订单状态并回复
type Handler struct {
	base *framework.BaseHandler
	deps *common.Deps
	data common.ResolveOrderData
}

// NewHandler 解析并校验业务数据
func NewHandler(ctx context.Context, base *framework.BaseHandler, deps *common.Deps) (framework.BusinessHandler, error) {
	h := &Handler{base: base, deps: deps}
	if err := base.DecodePayload(&h.data); err != nil {
		return nil, errorutil.NonRetriableCause("invalid resolve_order payload", err)
	}
	if h.data.ConversationID == "" {
		return nil, errorutil.NonRetriable("conversation_id is required")
	}
	if h.data.OrderNumber == "" && h.data.Message == "" {
		return nil, errorutil.NonRetriable("order_number or message is required")
	}
	return h, nil
}

// Handle 查询订单；临时错误标记为可重试，其余错误不重试
func (h *Handler) Handle(ctx context.Context) ([]byte, error) {
	ref, ok := h.reference()
	if !ok {
		return h.base.Succeed(ctx, &common.ResolveResult{Processed: false, Reason: "not_order_query"})
	}

	res, err := h.deps.Lookup.Lookup(ctx, lookup.Request{
		ConversationID: h.data.ConversationID,
		UserID:         h.data.UserID,
		Reference:      ref,
	})
	if err != nil {
		partial := &common.ResolveResult{Processed: false, OrderNumber: ref.RawNumber}
		if errors.Is(err, platform.ErrTransient) || errors.Is(err, lookup.ErrReplyFailed) {
			return h.base.Fail(ctx, partial, errorutil.RetriableCause("order status temporarily unavailable", err))
		}
		return h.base.Fail(ctx, partial, errorutil.NonRetriableCause("order lookup failed", err))
	}

	result := &common.ResolveResult{
		Processed:   true,
		Outcome:     res.Outcome,
		OrderNumber: ref.RawNumber,
		TicketID:    res.TicketID,
	}
	if res.Status != nil {
		result.Platform = string(res.Status.Platform)
		result.Status = res.Status.RawStatusCode
		result.FromCache = res.Status.FromCache
	}
	return h.base.Succeed(ctx, result)
}

// reference 优先使用已提取的订单号，否则从原始消息提取
func (h *Handler) reference() (platform.OrderReference, bool) {
	if h.data.OrderNumber != "" {
		return platform.NewOrderReference(h.data.OrderNumber, platform.Parse(h.data.PlatformHint)), true
	}
	res, ok := extract.Extract(h.data.Message)
	if !ok {
		return platform.OrderReference{}, false
	}
	return res.Reference, true
}
