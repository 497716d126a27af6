package webhook

import (
	"github.com/kennteohstorehub/BeepChatBot/internal/framework"
	"github.com/kennteohstorehub/BeepChatBot/pkg/logger"
)

// TopicUserReplied 只处理用户回复
const TopicUserReplied = "conversation.user.replied"

// SignatureHeader Intercom 签名头
const SignatureHeader = "X-Hub-Signature"

// MaxBodyBytes 请求体上限
const MaxBodyBytes = 1 << 20

// Handler Intercom webhook 接入：验签 -> 提取订单号 -> 入队
type Handler struct {
	publisher framework.Publisher
	queue     string
	secret    string
	logger    logger.Logger
}

// NewHandler 创建 webhook 处理器；secret 为空时不验签（仅限本地开发）
func NewHandler(publisher framework.Publisher, queue, secret string, log logger.Logger) *Handler {
	return &Handler{
		publisher: publisher,
		queue:     queue,
		secret:    secret,
		logger:    log,
	}
}
