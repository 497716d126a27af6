package webhook

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/extract"
	"github.com/kennteohstorehub/BeepChatBot/internal/domains"
	"github.com/kennteohstorehub/BeepChatBot/internal/domains/common"
	"github.com/kennteohstorehub/BeepChatBot/internal/server/ginx"
)

// Notification Intercom webhook 通知
type Notification struct {
	Topic string `json:"topic" binding:"required"`
	Data  struct {
		Item Conversation `json:"item"`
	} `json:"data"`
}

// Conversation 会话
type Conversation struct {
	ID   string `json:"id"`
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	ConversationParts struct {
		Parts []struct {
			Body string `json:"body"`
		} `json:"conversation_parts"`
	} `json:"conversation_parts"`
}

// ReceiveResult 接收结果
type ReceiveResult struct {
	Queued      bool   `json:"queued"`
	Reason      string `json:"reason,omitempty"`
	JobID       string `json:"job_id,omitempty"`
	OrderNumber string `json:"order_number,omitempty"`
}

// Receive 接收 webhook
// POST /webhook
func (h *Handler) Receive(c *gin.Context) {
	ctx := c.Request.Context()

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warnf(ctx, "[Webhook] body over %d bytes from %s", tooLarge.Limit, c.ClientIP())
			ginx.Error(c, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		ginx.BadRequest(c, "unreadable body")
		return
	}

	if h.secret != "" && !Verify(h.secret, body, c.GetHeader(SignatureHeader)) {
		h.logger.Warnf(ctx, "[Webhook] invalid signature from %s", c.ClientIP())
		ginx.Unauthorized(c, "invalid signature")
		return
	}

	var n Notification
	if err := binding.JSON.BindBody(body, &n); err != nil {
		ginx.BadRequestWithValidation(c, err)
		return
	}
	h.logger.Infof(ctx, "[Webhook] received topic %s", n.Topic)

	if n.Topic != TopicUserReplied {
		ginx.Success(c, ReceiveResult{Reason: "ignored_topic"})
		return
	}

	item := n.Data.Item
	if item.ID == "" || len(item.ConversationParts.Parts) == 0 {
		ginx.BadRequest(c, "conversation id and message are required")
		return
	}
	message := item.ConversationParts.Parts[0].Body

	res, ok := extract.Extract(message)
	if !ok {
		ginx.Success(c, ReceiveResult{Reason: "not_order_query"})
		return
	}

	data := common.ResolveOrderData{
		ConversationID: item.ID,
		UserID:         item.User.ID,
		OrderNumber:    res.Reference.RawNumber,
		Message:        message,
	}
	if res.Reference.PlatformHint.Known() {
		data.PlatformHint = string(res.Reference.PlatformHint)
	}

	jobID, err := domains.PublishResolveOrder(h.publisher, h.queue, requestid.Get(c), data)
	if err != nil {
		h.logger.Errorf(ctx, "[Webhook] enqueue conversation %s failed: %v", item.ID, err)
		ginx.ServiceUnavailable(c, "queue unavailable")
		return
	}

	h.logger.Infof(ctx, "[Webhook] queued conversation %s order %s as job %s", item.ID, data.OrderNumber, jobID)
	ginx.Success(c, ReceiveResult{Queued: true, JobID: jobID, OrderNumber: data.OrderNumber})
}
