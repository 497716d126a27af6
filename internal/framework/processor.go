package framework

import (
	"context"
	"sync"
	"time"

	"github.com/bitleak/lmstfy/client"

	"github.com/kennteohstorehub/BeepChatBot/pkg/lmstfyx"
	"github.com/kennteohstorehub/BeepChatBot/pkg/logger"
)

// Processor 处理器：接收消息，调用业务处理函数，并根据结果 ACK / 重试 / 丢弃
// Job 的 attempt 计数只在这里修改
type Processor struct {
	cfg         *ProcessorConfig
	proc        lmstfyx.Proc
	queue       Queue
	onExhausted ExhaustedFunc
	logger      Logger
	shutdownCh  chan struct{}
	wg          sync.WaitGroup
}

// NewProcessor 创建处理器
func NewProcessor(cfg *ProcessorConfig, proc lmstfyx.Proc, queue Queue, onExhausted ExhaustedFunc, logger Logger) *Processor {
	return &Processor{
		cfg:         cfg,
		proc:        proc,
		queue:       queue,
		onExhausted: onExhausted,
		logger:      logger,
		shutdownCh:  make(chan struct{}),
	}
}

// Start 启动处理协程
func (p *Processor) Start(ctx context.Context, inputChan <-chan *Message) {
	p.logger.Infof(ctx, "[Processor] Starting with %d workers", p.cfg.Concurrency)

	for i := 0; i < p.cfg.Concurrency; i++ {
		workerID := i
		p.wg.Add(1)
		go p.loop(ctx, workerID, inputChan)
	}
}

// SignalShutdown 通知 Processor 准备退出（进入 Drain 模式）
func (p *Processor) SignalShutdown() {
	p.logger.Infof(context.Background(), "[Processor] Shutdown signal received")
	close(p.shutdownCh)
}

// Wait 等待所有处理协程退出
func (p *Processor) Wait() {
	p.wg.Wait()
	p.logger.Infof(context.Background(), "[Processor] All workers exited")
}

// loop 处理循环（单个 Worker）
func (p *Processor) loop(ctx context.Context, workerID int, inputChan <-chan *Message) {
	defer p.wg.Done()
	p.logger.Infof(ctx, "[Processor-%d] Started", workerID)

	for {
		select {
		case msg := <-inputChan:
			p.process(ctx, msg, workerID)

		// Drain 模式：处理完剩余消息再退出
		case <-p.shutdownCh:
			p.logger.Infof(ctx, "[Processor-%d] Entering DRAIN mode", workerID)
			count := 0
			for {
				select {
				case msg := <-inputChan:
					p.process(ctx, msg, workerID)
					count++
				default:
					p.logger.Infof(ctx, "[Processor-%d] Drained %d messages, exiting", workerID, count)
					return
				}
			}
		}
	}
}

// process 处理单个消息
func (p *Processor) process(ctx context.Context, msg *Message, workerID int) {
	if msg == nil {
		return
	}

	startTime := time.Now()

	procCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	procCtx = logger.WithValue(procCtx, logger.KeyWorkerID, workerID)
	procCtx = logger.WithValue(procCtx, logger.KeyJobID, msg.ID)

	p.logger.Infof(procCtx, "[Processor-%d] Processing message: %s", workerID, msg.ID)

	job := &client.Job{
		ID:    msg.ID,
		Queue: msg.Queue,
		Data:  msg.Data,
	}

	resp := p.proc(procCtx, job)
	if resp == nil {
		resp = lmstfyx.Bury(nil)
	}

	p.settle(procCtx, msg, resp)

	p.logger.Infof(procCtx, "[Processor-%d] Message processed: %s, action: %s, duration: %v",
		workerID, msg.ID, resp.Action, time.Since(startTime))
}

// settle 根据处理结果 ACK / 重试 / 丢弃
func (p *Processor) settle(ctx context.Context, msg *Message, resp *lmstfyx.JobResp) {
	switch resp.Action {
	case lmstfyx.JobRespStatusSuccess:
		p.ack(ctx, msg)
	case lmstfyx.JobRespStatusRelease:
		p.retry(ctx, msg)
	default:
		p.logger.Warnf(ctx, "[Processor] Burying message: %s", msg.ID)
		p.ack(ctx, msg)
	}
}

// retry 以指数退避重新投递；达到上限则触发耗尽回调
func (p *Processor) retry(ctx context.Context, msg *Message) {
	job, err := DecodeJob(msg.Data)
	if err != nil {
		p.logger.Errorf(ctx, "[Processor] Cannot retry undecodable message %s: %v", msg.ID, err)
		p.ack(ctx, msg)
		return
	}

	data := job.Payload.Data
	limit := p.cfg.Retry.Limit(data.MaxAttempts)

	if data.Attempt >= limit {
		p.logger.Warnf(ctx, "[Processor] Job %s exhausted after %d attempts", data.ID, data.Attempt)
		if p.onExhausted != nil {
			if err := p.onExhausted(context.WithoutCancel(ctx), job); err != nil {
				p.logger.Errorf(ctx, "[Processor] Exhaustion hook failed for job %s: %v", data.ID, err)
			}
		}
		p.ack(ctx, msg)
		return
	}

	delay := p.cfg.Retry.Backoff(data.Attempt)
	data.Attempt++
	data.MaxAttempts = limit

	raw, err := job.Encode()
	if err != nil {
		p.logger.Errorf(ctx, "[Processor] Encode retry job %s failed: %v", data.ID, err)
		p.ack(ctx, msg)
		return
	}

	// 先发布再 ACK：中途崩溃只会导致重复投递，不会丢失
	if _, err := p.queue.Publish(msg.Queue, raw, delay); err != nil {
		p.logger.Errorf(ctx, "[Processor] Republish job %s failed, leaving it to TTR redelivery: %v", data.ID, err)
		return
	}

	p.logger.Infof(ctx, "[Processor] Job %s scheduled for attempt %d/%d in %v", data.ID, data.Attempt, limit, delay)
	p.ack(ctx, msg)
}

func (p *Processor) ack(ctx context.Context, msg *Message) {
	if err := p.queue.Ack(msg.Queue, msg.ID); err != nil {
		p.logger.Errorf(ctx, "[Processor] Ack %s failed: %v", msg.ID, err)
	}
}
