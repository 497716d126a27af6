package worker

import (
	"fmt"

	"github.com/kennteohstorehub/BeepChatBot/internal/framework"
	"github.com/kennteohstorehub/BeepChatBot/pkg/config"
	"github.com/kennteohstorehub/BeepChatBot/pkg/lmstfy"
)

// Queue Worker 与 Webhook 共用的任务队列
type Queue interface {
	framework.Queue
	Size(queue string) (int, error)
	Close() error
}

var (
	_ Queue = (*lmstfy.Client)(nil)
	_ Queue = (*framework.MemoryQueue)(nil)
)

// NewQueue 根据配置选择队列：配置了 lmstfy host 时使用 lmstfy，否则使用进程内队列
func NewQueue(cfg config.LmstfyConfig) (Queue, error) {
	if cfg.Host == "" {
		return framework.NewMemoryQueue(0), nil
	}
	cli, err := lmstfy.NewClient(cfg.Host, cfg.Port, cfg.Namespace, cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create lmstfy client: %w", err)
	}
	return cli, nil
}

// IsDurable 是否为持久化队列
func IsDurable(q Queue) bool {
	_, ok := q.(*lmstfy.Client)
	return ok
}
