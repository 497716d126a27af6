package domains

import (
	"fmt"

	"github.com/kennteohstorehub/BeepChatBot/internal/domains/common"
	"github.com/kennteohstorehub/BeepChatBot/internal/framework"
)

// PublishResolveOrder 投递 resolve_order 任务，requestID 为空时自动生成。
// 任务 ID 使用会话 ID，便于按会话追踪。
func PublishResolveOrder(pub framework.Publisher, queue, requestID string, data common.ResolveOrderData) (string, error) {
	if data.ConversationID == "" {
		return "", fmt.Errorf("conversation_id is required")
	}
	if data.OrderNumber == "" && data.Message == "" {
		return "", fmt.Errorf("order_number or message is required")
	}

	job, err := framework.NewJob(common.ActionResolveOrder, data.ConversationID, data)
	if err != nil {
		return "", err
	}
	if requestID != "" {
		job.Payload.Data.RequestID = requestID
	}

	raw, err := job.Encode()
	if err != nil {
		return "", err
	}
	jobID, err := pub.Publish(queue, raw, 0)
	if err != nil {
		return "", fmt.Errorf("publish resolve_order job: %w", err)
	}
	return jobID, nil
}
