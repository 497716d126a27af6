package framework

import "time"

const defaultMaxAttempts = 3

// RetryPolicy 重试策略：第 n 次失败后等待 BaseDelay * 2^(n-1) 再重新投递
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Backoff 计算第 attempt 次失败后的重试延迟
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.BaseDelay <= 0 {
		return 0
	}
	// 防止移位溢出
	if attempt > 30 {
		attempt = 30
	}
	return p.BaseDelay * time.Duration(1<<uint(attempt-1))
}

// Limit 返回 Job 的最大尝试次数，Job 自带值优先
func (p RetryPolicy) Limit(jobMax int) int {
	if jobMax > 0 {
		return jobMax
	}
	if p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return defaultMaxAttempts
}
