package platform

import (
	"context"
	"time"
)

// Client 单个配送平台的状态查询能力
type Client interface {
	Platform() Platform
	// FetchStatus 查询运单状态，返回 ErrNotFound 或 ErrTransient 类错误
	FetchStatus(ctx context.Context, trackingID string) (*CanonicalStatus, error)
}

// parseTime 解析平台返回的时间，失败时返回 nil
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
