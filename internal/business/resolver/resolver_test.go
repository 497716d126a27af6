package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/cache"
	"github.com/kennteohstorehub/BeepChatBot/internal/business/platform"
	"github.com/kennteohstorehub/BeepChatBot/pkg/logger"
)

// stubClient 按运单号返回预设结果
type stubClient struct {
	platform platform.Platform
	calls    *atomic.Int64
	results  map[string]*platform.CanonicalStatus
	err      error
	delay    time.Duration
	seen     []string
	mu       sync.Mutex
}

func newStub(p platform.Platform) *stubClient {
	return &stubClient{platform: p, calls: atomic.NewInt64(0), results: map[string]*platform.CanonicalStatus{}}
}

func (s *stubClient) with(id, code, text string) *stubClient {
	s.results[id] = &platform.CanonicalStatus{Platform: s.platform, OrderID: id, RawStatusCode: code, StatusText: text}
	return s
}

func (s *stubClient) Platform() platform.Platform { return s.platform }

func (s *stubClient) FetchStatus(ctx context.Context, id string) (*platform.CanonicalStatus, error) {
	s.calls.Inc()
	s.mu.Lock()
	s.seen = append(s.seen, id)
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, &platform.TransientError{Platform: s.platform, Err: ctx.Err()}
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if st, ok := s.results[id]; ok {
		return st.Clone(), nil
	}
	return nil, platform.ErrNotFound
}

type stubRegistry struct {
	calls  *atomic.Int64
	orders map[string]*platform.RegistryOrder
	err    error
}

func newRegistry() *stubRegistry {
	return &stubRegistry{calls: atomic.NewInt64(0), orders: map[string]*platform.RegistryOrder{}}
}

func (r *stubRegistry) LookupOrder(ctx context.Context, id string) (*platform.RegistryOrder, error) {
	r.calls.Inc()
	if r.err != nil {
		return nil, r.err
	}
	if o, ok := r.orders[id]; ok {
		return o, nil
	}
	return nil, platform.ErrNotFound
}

type fixture struct {
	lalamove  *stubClient
	foodpanda *stubClient
	registry  *stubRegistry
	cache     *cache.Memory
	resolver  *Resolver
}

func newFixture() *fixture {
	f := &fixture{
		lalamove:  newStub(platform.Lalamove),
		foodpanda: newStub(platform.Foodpanda),
		registry:  newRegistry(),
		cache:     cache.NewMemory(),
	}
	f.build()
	return f
}

func (f *fixture) build() {
	f.resolver = New(f.cache, []platform.Client{f.lalamove, f.foodpanda}, f.registry,
		Options{CacheTTL: time.Minute, TotalTimeout: time.Second}, logger.NewNop())
}

func (f *fixture) backendCalls() int64 {
	return f.lalamove.calls.Load() + f.foodpanda.calls.Load() + f.registry.calls.Load()
}

func TestResolve_PatternMatch(t *testing.T) {
	f := newFixture()
	f.lalamove.with("LM12345678", "PICKED_UP", "Your order has been picked up and is on the way")

	status, err := f.resolver.Resolve(context.Background(), platform.NewOrderReference("LM12345678", platform.Unknown))
	require.NoError(t, err)
	assert.Equal(t, platform.Lalamove, status.Platform)
	assert.Equal(t, "Your order has been picked up and is on the way", status.StatusText)
	assert.False(t, status.FromCache)
	assert.EqualValues(t, 0, f.foodpanda.calls.Load())
}

func TestResolve_RegistryCrossReference(t *testing.T) {
	f := newFixture()
	f.registry.orders["BEP88888888"] = &platform.RegistryOrder{
		OrderID:            "BEP88888888",
		DeliveryPartner:    "lalamove",
		DeliveryTrackingID: "LM87654321",
		Status:             "in_transit",
	}
	f.lalamove.with("LM87654321", "ON_GOING", "Driver is on the way to pick up your order")

	status, err := f.resolver.Resolve(context.Background(), platform.NewOrderReference("BEP88888888", platform.Unknown))
	require.NoError(t, err)
	assert.Equal(t, platform.Lalamove, status.Platform)
	assert.Equal(t, "BEP88888888", status.InternalOrderID)
	assert.Equal(t, []string{"LM87654321"}, f.lalamove.seen)

	// 以原始单号为 key 写入缓存
	cached, ok, _ := f.cache.Get(context.Background(), "BEP88888888")
	require.True(t, ok)
	assert.Equal(t, "LM87654321", cached.OrderID)
}

func TestResolve_RegistryOnlyStatus(t *testing.T) {
	f := newFixture()
	f.registry.orders["BEP11111111"] = &platform.RegistryOrder{OrderID: "BEP11111111", Status: "pending"}

	status, err := f.resolver.Resolve(context.Background(), platform.NewOrderReference("BEP11111111", platform.Internal))
	require.NoError(t, err)
	assert.Equal(t, platform.Internal, status.Platform)
	assert.Equal(t, "Finding a driver for your order", status.StatusText)
}

func TestResolve_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.resolver.Resolve(context.Background(), platform.NewOrderReference("FP0000000000", platform.Unknown))
	assert.ErrorIs(t, err, platform.ErrNotFound)
	assert.NotErrorIs(t, err, platform.ErrTransient)
	assert.Equal(t, []string{"FP0000000000"}, f.foodpanda.seen)

	_, ok, _ := f.cache.Get(context.Background(), "FP0000000000")
	assert.False(t, ok, "not found must not be cached")
}

func TestResolve_CacheIdempotence(t *testing.T) {
	f := newFixture()
	f.lalamove.with("LM12345678", "COMPLETED", "Your order has been delivered")
	ctx := context.Background()
	ref := platform.NewOrderReference("LM12345678", platform.Unknown)

	first, err := f.resolver.Resolve(ctx, ref)
	require.NoError(t, err)
	calls := f.backendCalls()

	second, err := f.resolver.Resolve(ctx, ref)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, calls, f.backendCalls(), "cache hit must not reach any backend")

	second.FromCache = false
	assert.Equal(t, first, second)
}

func TestResolve_HintIsExclusive(t *testing.T) {
	f := newFixture()
	f.lalamove.with("FP1234567890", "ON_GOING", "x")

	_, err := f.resolver.Resolve(context.Background(), platform.NewOrderReference("FP1234567890", platform.Foodpanda))
	assert.ErrorIs(t, err, platform.ErrNotFound)
	assert.EqualValues(t, 0, f.lalamove.calls.Load())
	assert.EqualValues(t, 0, f.registry.calls.Load())

	status, err := f.resolver.Resolve(context.Background(), platform.NewOrderReference("FP1234567890", platform.Lalamove))
	require.NoError(t, err)
	assert.Equal(t, platform.Lalamove, status.Platform)
}

func TestResolve_UnavailableIsNeverNotFound(t *testing.T) {
	f := newFixture()
	f.lalamove.err = platform.ErrCircuitOpen

	_, err := f.resolver.Resolve(context.Background(), platform.NewOrderReference("LM12345678", platform.Unknown))
	assert.ErrorIs(t, err, platform.ErrTransient)
	assert.ErrorIs(t, err, platform.ErrCircuitOpen)
	assert.NotErrorIs(t, err, platform.ErrNotFound)

	_, err = f.resolver.Resolve(context.Background(), platform.NewOrderReference("LM12345678", platform.Lalamove))
	assert.ErrorIs(t, err, platform.ErrTransient)
	assert.NotErrorIs(t, err, platform.ErrNotFound)
}

func TestResolve_RegistryDownUnknownReference(t *testing.T) {
	f := newFixture()
	f.registry.err = &platform.TransientError{Platform: platform.Internal, StatusCode: 503}

	_, err := f.resolver.Resolve(context.Background(), platform.NewOrderReference("BEP22222222", platform.Unknown))
	assert.ErrorIs(t, err, platform.ErrTransient)
	assert.NotErrorIs(t, err, platform.ErrNotFound)

	// 配送平台明确不存在时不受内部系统故障影响
	_, err = f.resolver.Resolve(context.Background(), platform.NewOrderReference("FP0000000000", platform.Unknown))
	assert.ErrorIs(t, err, platform.ErrNotFound)
}

func TestResolve_MissingClientIsConfigurationError(t *testing.T) {
	f := newFixture()
	f.resolver = New(f.cache, []platform.Client{f.foodpanda}, nil, Options{}, logger.NewNop())

	_, err := f.resolver.Resolve(context.Background(), platform.NewOrderReference("LM12345678", platform.Unknown))
	assert.ErrorIs(t, err, platform.ErrConfiguration)
	assert.ErrorIs(t, err, platform.ErrTransient)

	_, err = f.resolver.Resolve(context.Background(), platform.NewOrderReference("ZZ123", platform.Unknown))
	assert.ErrorIs(t, err, platform.ErrNotFound)
}

func TestResolve_TotalTimeout(t *testing.T) {
	f := newFixture()
	f.lalamove.delay = time.Second
	f.resolver = New(f.cache, []platform.Client{f.lalamove}, nil, Options{TotalTimeout: 30 * time.Millisecond}, logger.NewNop())

	start := time.Now()
	_, err := f.resolver.Resolve(context.Background(), platform.NewOrderReference("LM12345678", platform.Unknown))
	assert.ErrorIs(t, err, platform.ErrTransient)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestResolve_ConcurrentSameReferenceCoalesced(t *testing.T) {
	f := newFixture()
	f.lalamove.with("LM12345678", "PICKED_UP", "x")
	f.lalamove.delay = 50 * time.Millisecond
	f.registry.err = nil

	var wg sync.WaitGroup
	results := make([]*platform.CanonicalStatus, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st, err := f.resolver.Resolve(context.Background(), platform.NewOrderReference("LM12345678", platform.Unknown))
			assert.NoError(t, err)
			results[i] = st
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, f.lalamove.calls.Load(), int64(2))
	for _, st := range results {
		require.NotNil(t, st)
		assert.Equal(t, "LM12345678", st.OrderID)
	}
}

func TestResolve_CancelledLeaderDoesNotFailJoiners(t *testing.T) {
	f := newFixture()
	f.lalamove.with("LM12345678", "PICKED_UP", "x")
	f.lalamove.delay = 60 * time.Millisecond
	ref := platform.NewOrderReference("LM12345678", platform.Unknown)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := f.resolver.Resolve(leaderCtx, ref)
		leaderErr <- err
	}()

	// 等 leader 发起解析后再加入
	require.Eventually(t, func() bool { return f.lalamove.calls.Load() == 1 }, time.Second, time.Millisecond)
	joined := make(chan *platform.CanonicalStatus, 1)
	go func() {
		st, err := f.resolver.Resolve(context.Background(), ref)
		assert.NoError(t, err)
		joined <- st
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	err := <-leaderErr
	assert.ErrorIs(t, err, platform.ErrTransient)
	assert.ErrorIs(t, err, context.Canceled)

	st := <-joined
	require.NotNil(t, st)
	assert.Equal(t, "PICKED_UP", st.RawStatusCode)
	assert.EqualValues(t, 1, f.lalamove.calls.Load())
}
