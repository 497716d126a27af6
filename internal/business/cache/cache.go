package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/platform"
)

// StatusCache 订单状态缓存，key 为原始订单号
type StatusCache interface {
	// Get 未命中或已过期返回 (nil, false, nil)
	Get(ctx context.Context, ref string) (*platform.CanonicalStatus, bool, error)
	Put(ctx context.Context, ref string, status *platform.CanonicalStatus, ttl time.Duration) error
}

type entry struct {
	value     *platform.CanonicalStatus
	expiresAt time.Time
}

// Memory 进程内缓存，读取时惰性判断过期
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory 创建进程内缓存
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, ref string) (*platform.CanonicalStatus, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[ref]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		// 期间可能已被覆盖
		if cur, ok := m.entries[ref]; ok && !m.now().Before(cur.expiresAt) {
			delete(m.entries, ref)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.value.Clone(), true, nil
}

func (m *Memory) Put(_ context.Context, ref string, status *platform.CanonicalStatus, ttl time.Duration) error {
	if status == nil || ttl <= 0 {
		return nil
	}
	v := status.Clone()
	v.FromCache = false
	m.mu.Lock()
	m.entries[ref] = entry{value: v, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Len 当前条目数（含未清理的过期条目）
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
