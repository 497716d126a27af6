package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/kennteohstorehub/BeepChatBot/internal/domains"
	"github.com/kennteohstorehub/BeepChatBot/internal/domains/common"
	"github.com/kennteohstorehub/BeepChatBot/internal/framework"
	"github.com/kennteohstorehub/BeepChatBot/pkg/config"
	"github.com/kennteohstorehub/BeepChatBot/pkg/logger"
)

// Manager 接口
type Manager interface {
	Start() error
	Shutdown()
}

// ManagerInstance Manager 实例
type ManagerInstance struct {
	ctx        context.Context
	cfg        *config.Config
	queue      framework.Queue
	deps       *common.Deps
	observer   domains.JobObserver
	workers    []Worker
	closing    *atomic.Bool
	shutdownCh chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	logger     logger.Logger
}

// NewManagerInstance 创建 Manager，queue 与 deps 由调用方构造并负责关闭
func NewManagerInstance(cfg *config.Config, queue framework.Queue, deps *common.Deps, observer domains.JobObserver, log logger.Logger) (Manager, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if deps == nil || deps.Lookup == nil {
		return nil, fmt.Errorf("lookup service is required")
	}
	if len(cfg.Workers) == 0 {
		return nil, fmt.Errorf("at least one worker is required")
	}

	return &ManagerInstance{
		ctx:        context.Background(),
		cfg:        cfg,
		queue:      queue,
		deps:       deps,
		observer:   observer,
		closing:    atomic.NewBool(false),
		shutdownCh: make(chan struct{}),
		workers:    make([]Worker, 0, len(cfg.Workers)),
		logger:     log,
	}, nil
}

// Start 启动 Manager，阻塞直到 Shutdown
func (m *ManagerInstance) Start() error {
	m.logger.Infof(m.ctx, "[Manager] Starting...")

	m.mu.Lock()
	if m.closing.Load() {
		m.mu.Unlock()
		return nil
	}
	m.loadWorkers()
	for _, worker := range m.workers {
		w := worker
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			w.Start()
		}()
		m.logger.Infof(m.ctx, "[Manager] Worker started: %s", w.GetName())
	}
	m.mu.Unlock()

	m.logger.Infof(m.ctx, "[Manager] Start success, workers: %d", len(m.workers))

	<-m.shutdownCh
	return nil
}

// Shutdown 优雅退出，可重复调用
func (m *ManagerInstance) Shutdown() {
	if !m.closing.CAS(false, true) {
		return
	}
	m.logger.Infof(m.ctx, "[Manager] Began to close")

	m.mu.Lock()
	workers := m.workers
	m.mu.Unlock()

	for _, worker := range workers {
		m.logger.Infof(m.ctx, "[Manager] Shutting down worker: %s", worker.GetName())
		worker.Shutdown()
	}
	m.wg.Wait()

	close(m.shutdownCh)
	m.logger.Infof(m.ctx, "[Manager] Shutdown complete")
}

// loadWorkers 按配置创建 Worker，调用方持有 mu
func (m *ManagerInstance) loadWorkers() {
	getProcess := domains.GetProcess(m.logger, m.deps, m.observer)

	for _, workerCfg := range m.cfg.Workers {
		subCfg := &framework.SubscriberConfig{
			QueueName:    workerCfg.QueueName,
			Concurrency:  workerCfg.Subscriber.Threads,
			Rate:         workerCfg.Subscriber.Rate,
			Timeout:      workerCfg.Subscriber.Timeout,
			TTR:          workerCfg.Subscriber.TTR,
			ErrorBackoff: workerCfg.Subscriber.ErrorBackoff,
		}
		procCfg := &framework.ProcessorConfig{
			Concurrency: workerCfg.Processor.Threads,
			BufferSize:  workerCfg.Processor.BufferSize,
			Timeout:     workerCfg.Processor.Timeout,
			Retry: framework.RetryPolicy{
				MaxAttempts: workerCfg.Retry.MaxAttempts,
				BaseDelay:   workerCfg.Retry.BaseDelay,
			},
		}

		escalateQueue := workerCfg.EscalateQueue
		if escalateQueue == "" {
			escalateQueue = workerCfg.QueueName
		}
		m.workers = append(m.workers, NewWorkerInstance(m.ctx, Spec{
			Name:        workerCfg.Name,
			Subscriber:  subCfg,
			Processor:   procCfg,
			Queue:       m.queue,
			Proc:        getProcess,
			OnExhausted: domains.ExhaustionHook(m.queue, escalateQueue, m.logger),
		}, m.logger))
	}
}
