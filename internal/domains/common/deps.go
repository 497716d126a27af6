package common

import (
	"context"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/escalation"
	"github.com/kennteohstorehub/BeepChatBot/internal/business/lookup"
)

// ActionType 路由标识
const (
	ActionResolveOrder = "resolve_order"
	ActionEscalate     = "escalate"
)

// LookupService 订单查询服务
type LookupService interface {
	Lookup(ctx context.Context, req lookup.Request) (*lookup.Result, error)
	Escalate(ctx context.Context, c escalation.Case) error
}

// Deps Handler 依赖，进程启动时构造一次
type Deps struct {
	Lookup LookupService
}
