package platform

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 平台明确表示订单不存在，终态，不重试
	ErrNotFound = errors.New("order not found")
	// ErrTransient 网络或平台故障，可重试
	ErrTransient = errors.New("platform temporarily unavailable")
	// ErrCircuitOpen 熔断器打开时的降级标记，表示"平台不可用"而非"订单不存在"
	ErrCircuitOpen = errors.New("circuit open")
	// ErrConfiguration 平台凭证缺失
	ErrConfiguration = errors.New("platform not configured")
)

// TransientError 带上下文的临时错误
type TransientError struct {
	Platform   Platform
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Platform, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Platform, e.Err)
}

func (e *TransientError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransient}
	}
	return []error{ErrTransient, e.Err}
}

// ConfigurationError 平台未配置凭证；本次进程内该平台视为永久临时故障，其他平台不受影响
type ConfigurationError struct {
	Platform Platform
	Missing  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s not configured", e.Platform, e.Missing)
}

func (e *ConfigurationError) Unwrap() []error {
	return []error{ErrConfiguration, ErrTransient}
}

// IsUnavailable 平台不可用（临时故障或熔断降级）
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrCircuitOpen)
}
