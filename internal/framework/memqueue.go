package framework

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultMemoryQueueSize = 1024

// MemoryQueue 进程内队列，未配置 lmstfy 时使用（开发/测试模式）
// 延迟消息到期时队列已满则阻塞等待空位；消费后 TTR 内未 ACK 的消息重新投递。进程退出即丢失。
type MemoryQueue struct {
	mu       sync.Mutex
	size     int
	queues   map[string]chan *Message
	inflight map[string]*time.Timer // 已消费未 ACK 的消息 -> TTR 计时器
	timers   map[*time.Timer]struct{}
	done     chan struct{}
	closed   bool
}

// NewMemoryQueue 创建内存队列，size 为单个队列容量
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = defaultMemoryQueueSize
	}
	return &MemoryQueue{
		size:     size,
		queues:   make(map[string]chan *Message),
		inflight: make(map[string]*time.Timer),
		timers:   make(map[*time.Timer]struct{}),
		done:     make(chan struct{}),
	}
}

func (q *MemoryQueue) channel(queue string) chan *Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch, ok := q.queues[queue]
	if !ok {
		ch = make(chan *Message, q.size)
		q.queues[queue] = ch
	}
	return ch
}

// deliver 阻塞投递，队列关闭时放弃
func (q *MemoryQueue) deliver(ch chan *Message, msg *Message) {
	select {
	case ch <- msg:
	case <-q.done:
	}
}

// Publish 发布消息，delay > 0 时延迟可见
func (q *MemoryQueue) Publish(queue string, data []byte, delay time.Duration) (string, error) {
	msg := &Message{
		ID:    uuid.New().String(),
		Queue: queue,
		Data:  data,
	}
	ch := q.channel(queue)

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return "", fmt.Errorf("memory queue closed")
	}

	if delay <= 0 {
		select {
		case ch <- msg:
			return msg.ID, nil
		default:
			return "", fmt.Errorf("memory queue %s is full", queue)
		}
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		q.mu.Unlock()
		q.deliver(ch, msg)
	})
	q.timers[timer] = struct{}{}

	return msg.ID, nil
}

// Consume 拉取消息，超时未拉到返回 nil, nil；ttr > 0 时未 ACK 的消息到期重投
func (q *MemoryQueue) Consume(queue string, timeout time.Duration, ttr time.Duration) (*Message, error) {
	ch := q.channel(queue)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-ch:
		if ttr > 0 {
			q.watch(ch, msg, ttr)
		}
		return msg, nil
	case <-timer.C:
		return nil, nil
	}
}

// watch TTR 到期仍未 ACK 时以同一 ID 重新入队
func (q *MemoryQueue) watch(ch chan *Message, msg *Message, ttr time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.inflight[msg.ID] = time.AfterFunc(ttr, func() {
		q.mu.Lock()
		_, pending := q.inflight[msg.ID]
		delete(q.inflight, msg.ID)
		q.mu.Unlock()
		if pending {
			q.deliver(ch, msg)
		}
	})
}

// Ack 确认消息
func (q *MemoryQueue) Ack(queue string, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.inflight[jobID]; ok {
		t.Stop()
		delete(q.inflight, jobID)
	}
	return nil
}

// Size 返回队列中可消费的消息数
func (q *MemoryQueue) Size(queue string) (int, error) {
	return len(q.channel(queue)), nil
}

// Close 取消未到期的延迟消息和 TTR 重投，释放阻塞中的投递；可重复调用
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	for t := range q.timers {
		t.Stop()
	}
	for _, t := range q.inflight {
		t.Stop()
	}
	q.timers = make(map[*time.Timer]struct{})
	q.inflight = make(map[string]*time.Timer)
	return nil
}
