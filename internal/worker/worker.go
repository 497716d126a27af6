package worker

import (
	"context"
	"sync"

	"github.com/kennteohstorehub/BeepChatBot/internal/framework"
	"github.com/kennteohstorehub/BeepChatBot/pkg/lmstfyx"
	"github.com/kennteohstorehub/BeepChatBot/pkg/logger"
)

// Worker 单个队列的消费单元
type Worker interface {
	Start()
	Shutdown()
	GetName() string
}

// Spec 构造 Worker 所需的全部参数
type Spec struct {
	Name        string
	Subscriber  *framework.SubscriberConfig
	Processor   *framework.ProcessorConfig
	Queue       framework.Queue
	Proc        lmstfyx.Proc
	OnExhausted framework.ExhaustedFunc // 重试耗尽时调用，可为 nil
}

// WorkerInstance 一个 Subscriber 拉取，经由 channel 交给一个 Processor 池
type WorkerInstance struct {
	ctx        context.Context
	spec       Spec
	subscriber *framework.Subscriber
	processor  *framework.Processor
	messages   chan *framework.Message
	done       chan struct{}
	stopOnce   sync.Once
	logger     logger.Logger
}

// NewWorkerInstance 按 Spec 创建 Worker
func NewWorkerInstance(ctx context.Context, spec Spec, log logger.Logger) Worker {
	return &WorkerInstance{
		ctx:        ctx,
		spec:       spec,
		subscriber: framework.NewSubscriber(spec.Subscriber, spec.Queue, log),
		processor:  framework.NewProcessor(spec.Processor, spec.Proc, spec.Queue, spec.OnExhausted, log),
		messages:   make(chan *framework.Message, spec.Processor.BufferSize),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// Start 启动后阻塞，直到 Shutdown 排空完毕
func (w *WorkerInstance) Start() {
	w.logger.Infof(w.ctx, "[Worker] %s consuming %s (pull=%d, process=%d, max_attempts=%d)",
		w.spec.Name, w.spec.Subscriber.QueueName, w.spec.Subscriber.Concurrency,
		w.spec.Processor.Concurrency, w.spec.Processor.Retry.MaxAttempts)

	// 消费端先就绪
	w.processor.Start(w.ctx, w.messages)
	w.subscriber.Start(w.ctx, w.messages)

	<-w.done
}

// Shutdown 停止拉取并排空已拉到的消息；可重复调用
func (w *WorkerInstance) Shutdown() {
	w.stopOnce.Do(func() {
		w.logger.Infof(w.ctx, "[Worker] %s draining", w.spec.Name)

		w.subscriber.Stop()
		w.subscriber.Wait()

		w.processor.SignalShutdown()
		w.processor.Wait()

		close(w.done)
		w.logger.Infof(w.ctx, "[Worker] %s stopped", w.spec.Name)
	})
}

// GetName Worker 名称
func (w *WorkerInstance) GetName() string {
	return w.spec.Name
}
