package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/platform"
)

const keyPrefix = "order:"

// StatusCache 基于 Redis 的订单状态缓存，多个 worker 进程共享
type StatusCache struct {
	client *redis.Client
}

// NewStatusCache 创建 Redis 缓存实例
func NewStatusCache(addr, password string, db int) (*StatusCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &StatusCache{client: client}, nil
}

// NewStatusCacheWithClient 使用已有连接
func NewStatusCacheWithClient(client *redis.Client) *StatusCache {
	return &StatusCache{client: client}
}

// Get 读取缓存，过期由 Redis 负责
func (c *StatusCache) Get(ctx context.Context, ref string) (*platform.CanonicalStatus, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+ref).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache: %w", err)
	}

	var status platform.CanonicalStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached status: %w", err)
	}
	return &status, true, nil
}

// Put 写入缓存（SET EX）
func (c *StatusCache) Put(ctx context.Context, ref string, status *platform.CanonicalStatus, ttl time.Duration) error {
	if status == nil || ttl <= 0 {
		return nil
	}
	v := *status
	v.FromCache = false
	raw, err := json.Marshal(&v)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+ref, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Ping 健康检查
func (c *StatusCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (c *StatusCache) Close() error {
	return c.client.Close()
}
