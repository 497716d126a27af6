package common

// ResolveOrderData resolve_order 业务数据。
// OrderNumber 为空时由 worker 从 Message 中提取订单号。
type ResolveOrderData struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	OrderNumber    string `json:"order_number,omitempty"`
	PlatformHint   string `json:"platform_hint,omitempty"`
	Message        string `json:"message,omitempty"`
}

// EscalateData escalate 业务数据
type EscalateData struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	OrderNumber    string `json:"order_number"`
	Reason         string `json:"reason"`
	Attempts       int    `json:"attempts"`
}

// ResolveResult resolve_order 处理结果（写入响应，用于日志）
type ResolveResult struct {
	Processed   bool   `json:"processed"`
	Reason      string `json:"reason,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
	OrderNumber string `json:"order_number,omitempty"`
	Platform    string `json:"platform,omitempty"`
	Status      string `json:"status,omitempty"`
	FromCache   bool   `json:"from_cache,omitempty"`
	TicketID    string `json:"ticket_id,omitempty"`
}
