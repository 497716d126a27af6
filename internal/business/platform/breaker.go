package platform

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/atomic"

	"github.com/kennteohstorehub/BeepChatBot/pkg/config"
	"github.com/kennteohstorehub/BeepChatBot/pkg/logger"
)

// BreakerSettings 熔断参数
type BreakerSettings struct {
	Window       time.Duration // 统计窗口，窗口结束时计数清零
	MinRequests  uint32        // 窗口内最少请求数，不足时不熔断
	FailureRatio float64       // 失败率阈值
	Cooldown     time.Duration // Open 持续时间，之后进入 HalfOpen 放行一次探测
}

// BreakerSettingsFromConfig 从配置构造熔断参数
func BreakerSettingsFromConfig(c config.BreakerConfig) BreakerSettings {
	return BreakerSettings{
		Window:       c.Window,
		MinRequests:  c.MinRequests,
		FailureRatio: c.FailureRatio,
		Cooldown:     c.Cooldown,
	}
}

// TransitionListener 熔断状态变化回调（告警、指标）
type TransitionListener func(p Platform, from, to string)

// Breaker 单个平台的熔断器
type Breaker[T any] struct {
	platform    Platform
	cb          *gobreaker.CircuitBreaker[T]
	transitions *atomic.Int64
}

// NewBreaker 创建熔断器；ErrNotFound 视为成功，平台本身是健康的
func NewBreaker[T any](p Platform, s BreakerSettings, log logger.Logger, listeners ...TransitionListener) *Breaker[T] {
	if s.MinRequests == 0 {
		s.MinRequests = 1
	}
	b := &Breaker[T]{
		platform:    p,
		transitions: atomic.NewInt64(0),
	}
	b.cb = gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        string(p),
		MaxRequests: 1,
		Interval:    s.Window,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			var abandoned *abandonedCall
			return err == nil || errors.Is(err, ErrNotFound) || errors.As(err, &abandoned)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.transitions.Inc()
			log.Warnf(context.Background(), "[Breaker] %s: %s -> %s", name, from, to)
			for _, l := range listeners {
				l(p, from.String(), to.String())
			}
		},
	})
	return b
}

// abandonedCall 调用方在调用过程中取消或耗尽总预算，失败不归咎于平台
type abandonedCall struct {
	err error
}

func (e *abandonedCall) Error() string { return e.err.Error() }

func (e *abandonedCall) Unwrap() error { return e.err }

// Call 经熔断器执行调用；熔断打开或半开探测名额已满时不发起调用，返回 ErrCircuitOpen。
// 调用方 ctx 已结束时不发起调用；调用中途结束的失败不计入失败率，半开探测除外（保守地重新打开）。
func (b *Breaker[T]) Call(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, &TransientError{Platform: b.platform, Err: err}
	}

	probing := b.cb.State() != gobreaker.StateClosed
	v, err := b.cb.Execute(func() (T, error) {
		v, err := fn(ctx)
		if err != nil && !probing && ctx.Err() != nil {
			return v, &abandonedCall{err: err}
		}
		return v, err
	})

	var abandoned *abandonedCall
	switch {
	case errors.As(err, &abandoned):
		return v, abandoned.err
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		return zero, ErrCircuitOpen
	}
	return v, err
}

// State 当前状态：closed / half-open / open
func (b *Breaker[T]) State() string {
	return b.cb.State().String()
}

// Transitions 状态变化次数
func (b *Breaker[T]) Transitions() int64 {
	return b.transitions.Load()
}

// GuardedClient 带熔断的平台客户端
type GuardedClient struct {
	client  Client
	breaker *Breaker[*CanonicalStatus]
}

// Guard 为客户端包装熔断器
func Guard(c Client, s BreakerSettings, log logger.Logger, listeners ...TransitionListener) *GuardedClient {
	return &GuardedClient{
		client:  c,
		breaker: NewBreaker[*CanonicalStatus](c.Platform(), s, log, listeners...),
	}
}

func (g *GuardedClient) Platform() Platform { return g.client.Platform() }

// FetchStatus 熔断打开时返回 ErrCircuitOpen，不发起网络调用
func (g *GuardedClient) FetchStatus(ctx context.Context, trackingID string) (*CanonicalStatus, error) {
	return g.breaker.Call(ctx, func(ctx context.Context) (*CanonicalStatus, error) {
		return g.client.FetchStatus(ctx, trackingID)
	})
}

// State 熔断状态
func (g *GuardedClient) State() string { return g.breaker.State() }

// GuardedRegistry 带熔断的内部订单查询，内部系统视为独立平台
type GuardedRegistry struct {
	registry Registry
	breaker  *Breaker[*RegistryOrder]
}

// GuardRegistry 为内部订单查询包装熔断器
func GuardRegistry(r Registry, s BreakerSettings, log logger.Logger, listeners ...TransitionListener) *GuardedRegistry {
	return &GuardedRegistry{
		registry: r,
		breaker:  NewBreaker[*RegistryOrder](Internal, s, log, listeners...),
	}
}

func (g *GuardedRegistry) LookupOrder(ctx context.Context, orderID string) (*RegistryOrder, error) {
	return g.breaker.Call(ctx, func(ctx context.Context) (*RegistryOrder, error) {
		return g.registry.LookupOrder(ctx, orderID)
	})
}

// State 熔断状态
func (g *GuardedRegistry) State() string { return g.breaker.State() }
