package domains

import (
	"context"

	"github.com/kennteohstorehub/BeepChatBot/internal/domains/common"
	"github.com/kennteohstorehub/BeepChatBot/internal/domains/handlers/escalate"
	"github.com/kennteohstorehub/BeepChatBot/internal/domains/handlers/resolve"
	"github.com/kennteohstorehub/BeepChatBot/internal/framework"
)

// HandlerFactory Handler 构造函数类型
type HandlerFactory func(
	ctx context.Context,
	base *framework.BaseHandler,
	deps *common.Deps,
) (framework.BusinessHandler, error)

// HandlerMap 路由表（ActionType → Handler 映射）
var HandlerMap = map[string]HandlerFactory{
	common.ActionResolveOrder: resolve.NewHandler,
	common.ActionEscalate:     escalate.NewHandler,
}
