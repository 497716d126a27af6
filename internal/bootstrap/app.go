// Package bootstrap 进程启动时构造一次共享依赖，worker、apiserver、lookupctl 共用
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/cache"
	"github.com/kennteohstorehub/BeepChatBot/internal/business/escalation"
	"github.com/kennteohstorehub/BeepChatBot/internal/business/lookup"
	"github.com/kennteohstorehub/BeepChatBot/internal/business/platform"
	"github.com/kennteohstorehub/BeepChatBot/internal/business/resolver"
	"github.com/kennteohstorehub/BeepChatBot/internal/domains/common"
	"github.com/kennteohstorehub/BeepChatBot/internal/metrics"
	"github.com/kennteohstorehub/BeepChatBot/internal/worker"
	"github.com/kennteohstorehub/BeepChatBot/pkg/config"
	"github.com/kennteohstorehub/BeepChatBot/pkg/infra/intercom"
	"github.com/kennteohstorehub/BeepChatBot/pkg/infra/mysql"
	"github.com/kennteohstorehub/BeepChatBot/pkg/infra/redis"
	"github.com/kennteohstorehub/BeepChatBot/pkg/logger"
)

// BreakerStater 熔断器状态
type BreakerStater interface {
	State() string
}

// Check 健康检查项
type Check func(ctx context.Context) error

// App 进程级依赖
type App struct {
	Config   *config.Config
	Logger   logger.Logger
	Metrics  *metrics.Metrics
	Queue    worker.Queue
	Cache    cache.StatusCache
	Resolver *resolver.Resolver
	Lookup   *lookup.Service
	Breakers map[platform.Platform]BreakerStater

	checks  map[string]Check
	closers []func() error
}

// InitializeApp 按配置构造全部依赖，返回的 cleanup 按构造的逆序释放资源
func InitializeApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, func(), error) {
	app := &App{
		Config:   cfg,
		Logger:   log,
		Metrics:  metrics.New(),
		Breakers: make(map[platform.Platform]BreakerStater),
		checks:   make(map[string]Check),
	}
	cleanup := func() {
		if err := app.close(); err != nil {
			log.Warnf(ctx, "[Bootstrap] cleanup: %v", err)
		}
	}

	if err := app.init(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	return app, cleanup, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	queue, err := worker.NewQueue(cfg.Lmstfy)
	if err != nil {
		return err
	}
	a.Queue = queue
	a.closers = append(a.closers, queue.Close)
	a.checks["queue"] = func(ctx context.Context) error {
		_, err := queue.Size(cfg.Lmstfy.Queue)
		return err
	}
	if !worker.IsDurable(queue) {
		a.Logger.Warnf(ctx, "[Bootstrap] lmstfy host not configured, using in-memory queue")
	}

	switch cfg.Cache.Backend {
	case "redis":
		rc, err := redis.NewStatusCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		a.Cache = rc
		a.closers = append(a.closers, rc.Close)
		a.checks["redis"] = rc.Ping
	default:
		a.Cache = cache.NewMemory()
	}

	settings := platform.BreakerSettingsFromConfig(cfg.Breaker)
	listener := a.Metrics.BreakerListener()

	lalamove := platform.Guard(
		platform.NewLalamoveClient(platform.OptionsFromConfig(cfg.Platforms.Lalamove)),
		settings, a.Logger, listener)
	foodpanda := platform.Guard(
		platform.NewFoodpandaClient(platform.OptionsFromConfig(cfg.Platforms.Foodpanda)),
		settings, a.Logger, listener)
	a.Breakers[platform.Lalamove] = lalamove
	a.Breakers[platform.Foodpanda] = foodpanda

	ist := platform.NewISTClient(platform.OptionsFromConfig(cfg.Platforms.Internal))
	var registry platform.Registry
	if cfg.Platforms.Internal.BaseURL != "" {
		guarded := platform.GuardRegistry(ist, settings, a.Logger, listener)
		a.Breakers[platform.Internal] = guarded
		registry = guarded
	} else {
		a.Logger.Warnf(ctx, "[Bootstrap] internal order registry not configured, cross-reference disabled")
	}
	for p := range a.Breakers {
		a.Metrics.InitBreaker(p)
	}

	a.Resolver = resolver.New(a.Cache, []platform.Client{lalamove, foodpanda}, registry, resolver.Options{
		CacheTTL:     cfg.Cache.TTL,
		TotalTimeout: cfg.Resolver.TotalTimeout,
	}, a.Logger)

	opts := []lookup.Option{lookup.WithObserver(a.Metrics)}
	var tickets escalation.TicketRecorder
	if cfg.MySQL.DSN != "" {
		dao, err := mysql.NewAuditDAO(cfg.MySQL.DSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, dao.Close)
		if err := dao.Migrate(ctx); err != nil {
			return err
		}
		opts = append(opts, lookup.WithRecorder(dao))
		tickets = dao
	}

	conv := intercom.NewClient(cfg.Intercom)
	policy := escalation.NewPolicy(conv, ist, tickets, cfg.Intercom.SupportTeamID, a.Logger)
	a.Lookup = lookup.NewService(a.Resolver, conv, policy, a.Logger, opts...)

	return nil
}

// Deps Handler 依赖
func (a *App) Deps() *common.Deps {
	return &common.Deps{Lookup: a.Lookup}
}

// Check 执行全部健康检查，返回每项的错误（nil 表示正常）
func (a *App) Check(ctx context.Context) map[string]error {
	out := make(map[string]error, len(a.checks))
	for name, check := range a.checks {
		out[name] = check(ctx)
	}
	return out
}

// BreakerStates 各平台熔断状态
func (a *App) BreakerStates() map[string]string {
	out := make(map[string]string, len(a.Breakers))
	for p, b := range a.Breakers {
		out[string(p)] = b.State()
	}
	return out
}

func (a *App) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close app: %w", err)
	}
	return nil
}
