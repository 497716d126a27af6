package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/cache"
	"github.com/kennteohstorehub/BeepChatBot/internal/business/platform"
	"github.com/kennteohstorehub/BeepChatBot/pkg/logger"
)

const (
	defaultCacheTTL     = 300 * time.Second
	defaultTotalTimeout = 15 * time.Second
)

// Options 解析参数
type Options struct {
	CacheTTL     time.Duration
	TotalTimeout time.Duration
}

// Resolver 订单状态解析：缓存 -> 指定平台 -> 内部订单关联 -> 单号格式识别
//
// 返回值三选一：状态、platform.ErrNotFound（确定不存在）、platform.ErrTransient（可重试）。
// 自身不持有状态，缓存和熔断器由外部注入并在 worker 间共享。
type Resolver struct {
	cache        cache.StatusCache
	clients      map[platform.Platform]platform.Client
	registry     platform.Registry
	ttl          time.Duration
	totalTimeout time.Duration
	group        singleflight.Group
	log          logger.Logger
}

// New 创建 Resolver；registry 为 nil 时跳过内部订单关联
func New(c cache.StatusCache, clients []platform.Client, registry platform.Registry, opts Options, log logger.Logger) *Resolver {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.TotalTimeout <= 0 {
		opts.TotalTimeout = defaultTotalTimeout
	}
	byPlatform := make(map[platform.Platform]platform.Client, len(clients))
	for _, cl := range clients {
		byPlatform[cl.Platform()] = cl
	}
	return &Resolver{
		cache:        c,
		clients:      byPlatform,
		registry:     registry,
		ttl:          opts.CacheTTL,
		totalTimeout: opts.TotalTimeout,
		log:          log,
	}
}

// Resolve 解析订单状态；同一订单号的并发请求合并为一次解析。
// 合并后的解析不随任何一个调用方取消，只受总预算约束；调用方各自等待自己的 ctx。
func (r *Resolver) Resolve(ctx context.Context, ref platform.OrderReference) (*platform.CanonicalStatus, error) {
	if ref.RawNumber == "" {
		return nil, fmt.Errorf("empty order reference: %w", platform.ErrNotFound)
	}
	ctx = logger.WithValue(ctx, logger.KeyOrderNumber, ref.RawNumber)

	key := ref.RawNumber + "|" + string(ref.PlatformHint)
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		return r.resolve(shared, ref)
	})

	select {
	case <-ctx.Done():
		r.log.Warnf(ctx, "[Resolver] caller gave up waiting for %s: %v", ref.RawNumber, ctx.Err())
		return nil, r.transient(ctx, ref.RawNumber, nil)
	case res := <-ch:
		if res.Shared {
			r.log.Debugf(ctx, "[Resolver] joined in-flight resolution for %s", ref.RawNumber)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*platform.CanonicalStatus).Clone(), nil
	}
}

// attempt 单次解析过程中的结论
type attempt struct {
	definite    bool    // 权威来源明确返回不存在
	unavailable []error // 无法确认的步骤
}

func (a *attempt) record(err error) {
	if errors.Is(err, platform.ErrNotFound) {
		return
	}
	a.unavailable = append(a.unavailable, err)
}

func (r *Resolver) resolve(ctx context.Context, ref platform.OrderReference) (*platform.CanonicalStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, r.totalTimeout)
	defer cancel()

	raw := ref.RawNumber

	// 1. 缓存
	if status, ok := r.fromCache(ctx, raw); ok {
		r.log.Debugf(ctx, "[Resolver] cache hit for %s (%s)", raw, status.Platform)
		return status, nil
	}

	// 2. 指定了外部平台时只查该平台
	if hint := ref.PlatformHint; hint.IsDeliveryPartner() {
		status, err := r.fetch(ctx, hint, raw)
		if err == nil {
			return r.store(ctx, raw, status), nil
		}
		if errors.Is(err, platform.ErrNotFound) {
			return nil, fmt.Errorf("%s on %s: %w", raw, hint, platform.ErrNotFound)
		}
		return nil, r.transient(ctx, raw, []error{err})
	}

	var a attempt
	detected := platform.Detect(raw)

	// 3. 内部订单关联
	if status, err := r.crossReference(ctx, raw); err == nil {
		return r.store(ctx, raw, status), nil
	} else if errors.Is(err, platform.ErrNotFound) {
		a.definite = !detected.IsDeliveryPartner()
	} else if !errors.Is(err, errNoRegistry) {
		a.record(err)
	}

	// 4. 单号格式识别
	if detected.IsDeliveryPartner() {
		status, err := r.fetch(ctx, detected, raw)
		if err == nil {
			return r.store(ctx, raw, status), nil
		}
		if errors.Is(err, platform.ErrNotFound) {
			a.definite = true
		} else {
			a.record(err)
		}
	}

	// 5. 无结果
	if !a.definite && len(a.unavailable) > 0 {
		return nil, r.transient(ctx, raw, a.unavailable)
	}
	r.log.Infof(ctx, "[Resolver] %s not found (detected=%s)", raw, detected)
	return nil, fmt.Errorf("%s: %w", raw, platform.ErrNotFound)
}

var errNoRegistry = errors.New("registry not configured")

// crossReference 通过内部订单找到关联的配送单；未关联配送平台时返回内部订单状态
func (r *Resolver) crossReference(ctx context.Context, raw string) (*platform.CanonicalStatus, error) {
	if r.registry == nil {
		return nil, errNoRegistry
	}
	order, err := r.registry.LookupOrder(ctx, raw)
	if err != nil {
		return nil, err
	}

	partner := order.Partner()
	if partner == platform.Unknown {
		return order.Canonical(), nil
	}

	r.log.Debugf(ctx, "[Resolver] %s cross-referenced to %s %s", raw, partner, order.DeliveryTrackingID)
	status, err := r.fetch(ctx, partner, order.DeliveryTrackingID)
	switch {
	case err == nil:
		status.InternalOrderID = order.OrderID
		return status, nil
	case errors.Is(err, platform.ErrNotFound):
		// 配送平台查不到运单，订单本身存在，以内部状态为准
		return order.Canonical(), nil
	default:
		return nil, err
	}
}

func (r *Resolver) fetch(ctx context.Context, p platform.Platform, trackingID string) (*platform.CanonicalStatus, error) {
	client, ok := r.clients[p]
	if !ok {
		return nil, &platform.ConfigurationError{Platform: p, Missing: "client"}
	}
	status, err := client.FetchStatus(ctx, trackingID)
	if err != nil {
		if errors.Is(err, platform.ErrConfiguration) {
			r.log.Errorf(ctx, "[Resolver] %s is not configured: %v", p, err)
		} else if !errors.Is(err, platform.ErrNotFound) {
			r.log.Warnf(ctx, "[Resolver] %s unavailable for %s: %v", p, trackingID, err)
		}
		return nil, err
	}
	return status, nil
}

func (r *Resolver) fromCache(ctx context.Context, raw string) (*platform.CanonicalStatus, bool) {
	if r.cache == nil {
		return nil, false
	}
	status, ok, err := r.cache.Get(ctx, raw)
	if err != nil {
		r.log.Warnf(ctx, "[Resolver] cache read failed for %s, treating as miss: %v", raw, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	status.FromCache = true
	return status, true
}

// store 写穿缓存，失败只记录日志
func (r *Resolver) store(ctx context.Context, raw string, status *platform.CanonicalStatus) *platform.CanonicalStatus {
	status.FromCache = false
	if r.cache != nil {
		if err := r.cache.Put(ctx, raw, status, r.ttl); err != nil {
			r.log.Warnf(ctx, "[Resolver] cache write failed for %s: %v", raw, err)
		}
	}
	r.log.Infof(ctx, "[Resolver] resolved %s via %s: %s", raw, status.Platform, status.RawStatusCode)
	return status
}

func (r *Resolver) transient(ctx context.Context, raw string, causes []error) error {
	if err := ctx.Err(); err != nil {
		causes = append(causes, fmt.Errorf("resolution budget exceeded: %w", err))
	}
	return fmt.Errorf("%s: %w", raw, errors.Join(append([]error{platform.ErrTransient}, causes...)...))
}
