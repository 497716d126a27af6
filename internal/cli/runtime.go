package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kennteohstorehub/BeepChatBot/internal/bootstrap"
	"github.com/kennteohstorehub/BeepChatBot/internal/business/lookup"
	"github.com/kennteohstorehub/BeepChatBot/internal/framework"
	"github.com/kennteohstorehub/BeepChatBot/internal/worker"
	"github.com/kennteohstorehub/BeepChatBot/pkg/config"
	"github.com/kennteohstorehub/BeepChatBot/pkg/logger"
)

// Runtime 子命令依赖
type Runtime struct {
	Resolver  lookup.Resolver
	Publisher framework.Publisher // 仅持久化队列可用，内存队列时为 nil
	Queue     string
	Breakers  func() map[string]string
}

// Loader 按命令行参数构造 Runtime
type Loader func(cmd *cobra.Command) (*Runtime, func(), error)

// AddConfigFlags 注册全局配置参数
func AddConfigFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "./config/worker.yaml", "Config file path (empty for env only)")
	cmd.PersistentFlags().String("env", ".env", "Optional .env file")
	cmd.PersistentFlags().String("log-level", "error", "Log level for diagnostics")
}

// DefaultLoader 使用与 worker 相同的配置构造依赖
func DefaultLoader(cmd *cobra.Command) (*Runtime, func(), error) {
	configPath, _ := cmd.Flags().GetString("config")
	envPath, _ := cmd.Flags().GetString("env")
	level, _ := cmd.Flags().GetString("log-level")

	if err := config.LoadDotEnv(envPath); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.NewZapLogger(level)
	if err != nil {
		return nil, nil, err
	}
	app, cleanup, err := bootstrap.InitializeApp(context.Background(), cfg, log)
	if err != nil {
		return nil, nil, err
	}

	rt := &Runtime{
		Resolver: app.Resolver,
		Queue:    cfg.Lmstfy.Queue,
		Breakers: app.BreakerStates,
	}
	if worker.IsDurable(app.Queue) {
		rt.Publisher = app.Queue
	}
	return rt, func() {
		cleanup()
		_ = log.Sync()
	}, nil
}
