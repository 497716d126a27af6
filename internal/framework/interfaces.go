package framework

import (
	"context"
	"time"
)

// MessageSource 消息源接口（适配不同 MQ）
type MessageSource interface {
	// Consume 消费消息（阻塞，直到拉取到消息或超时，超时返回 nil, nil）
	Consume(queue string, timeout time.Duration, ttr time.Duration) (*Message, error)

	// Ack 确认消息（删除消息）
	Ack(queue string, jobID string) error
}

// Publisher 消息发布接口，delay 之后消息才可被消费
type Publisher interface {
	Publish(queue string, data []byte, delay time.Duration) (string, error)
}

// Queue 同时具备消费与发布能力的队列
type Queue interface {
	MessageSource
	Publisher
}

// Logger 日志接口
type Logger interface {
	Debugf(ctx context.Context, format string, args ...interface{})
	Infof(ctx context.Context, format string, args ...interface{})
	Warnf(ctx context.Context, format string, args ...interface{})
	Errorf(ctx context.Context, format string, args ...interface{})
}

// BusinessHandler 业务处理器接口
type BusinessHandler interface {
	Handle(ctx context.Context) ([]byte, error)
}

// ExhaustedFunc 重试次数耗尽时的回调，job 为最后一次失败的 Job
type ExhaustedFunc func(ctx context.Context, job *Job) error
