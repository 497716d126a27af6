package framework

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bitleak/lmstfy/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennteohstorehub/BeepChatBot/pkg/lmstfyx"
	"github.com/kennteohstorehub/BeepChatBot/pkg/logger"
)

const testQueue = "order-status"

// recordingQueue 记录重投的延迟
type recordingQueue struct {
	*MemoryQueue
	mu     sync.Mutex
	delays []time.Duration
	acks   int
}

func (r *recordingQueue) Publish(queue string, data []byte, delay time.Duration) (string, error) {
	r.mu.Lock()
	r.delays = append(r.delays, delay)
	r.mu.Unlock()
	return r.MemoryQueue.Publish(queue, data, delay)
}

func (r *recordingQueue) Ack(queue string, jobID string) error {
	r.mu.Lock()
	r.acks++
	r.mu.Unlock()
	return r.MemoryQueue.Ack(queue, jobID)
}

func (r *recordingQueue) snapshot() ([]time.Duration, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...), r.acks
}

// invocation 一次处理调用
type invocation struct {
	at      time.Time
	attempt int
}

type invocationLog struct {
	mu    sync.Mutex
	calls []invocation
}

func (l *invocationLog) add(attempt int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, invocation{at: time.Now(), attempt: attempt})
	return len(l.calls)
}

func (l *invocationLog) all() []invocation {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]invocation(nil), l.calls...)
}

func startPipeline(t *testing.T, q Queue, proc lmstfyx.Proc, onExhausted ExhaustedFunc, policy RetryPolicy) func() {
	t.Helper()
	return startPipelineTTR(t, q, proc, onExhausted, policy, time.Second)
}

func startPipelineTTR(t *testing.T, q Queue, proc lmstfyx.Proc, onExhausted ExhaustedFunc, policy RetryPolicy, ttr time.Duration) func() {
	t.Helper()
	log := logger.NewNop()

	sub := NewSubscriber(&SubscriberConfig{
		QueueName:    testQueue,
		Concurrency:  1,
		Timeout:      5 * time.Millisecond,
		TTR:          ttr,
		ErrorBackoff: 5 * time.Millisecond,
	}, q, log)
	processor := NewProcessor(&ProcessorConfig{
		Concurrency: 2,
		BufferSize:  4,
		Timeout:     time.Second,
		Retry:       policy,
	}, proc, q, onExhausted, log)

	input := make(chan *Message, 4)
	ctx := context.Background()
	processor.Start(ctx, input)
	sub.Start(ctx, input)

	return func() {
		sub.Stop()
		sub.Wait()
		processor.SignalShutdown()
		processor.Wait()
	}
}

func publishJob(t *testing.T, q *MemoryQueue) {
	t.Helper()
	job, err := NewJob("resolve_order", "conv-1", samplePayload{OrderNumber: "LM12345678"})
	require.NoError(t, err)
	raw, err := job.Encode()
	require.NoError(t, err)
	_, err = q.Publish(testQueue, raw, 0)
	require.NoError(t, err)
}

func attemptOf(t *testing.T, job *client.Job) int {
	decoded, err := DecodeJob(job.Data)
	require.NoError(t, err)
	return decoded.Payload.Data.Attempt
}

func TestProcessor_FailTwiceThenSucceed(t *testing.T) {
	mem := NewMemoryQueue(16)
	defer mem.Close()
	q := &recordingQueue{MemoryQueue: mem}

	var log invocationLog
	done := make(chan struct{})
	exhausted := 0

	proc := func(ctx context.Context, job *client.Job) *lmstfyx.JobResp {
		n := log.add(attemptOf(t, job))
		if n < 3 {
			return lmstfyx.Release(nil)
		}
		close(done)
		return lmstfyx.Success(nil)
	}
	onExhausted := func(ctx context.Context, job *Job) error {
		exhausted++
		return nil
	}

	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: 30 * time.Millisecond}
	stop := startPipeline(t, q, proc, onExhausted, policy)
	publishJob(t, mem)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("job never succeeded")
	}
	stop()

	calls := log.all()
	require.Len(t, calls, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{calls[0].attempt, calls[1].attempt, calls[2].attempt})

	delays, acks := q.snapshot()
	assert.Equal(t, []time.Duration{30 * time.Millisecond, 60 * time.Millisecond}, delays)
	assert.Equal(t, 3, acks)

	for i := 1; i < len(calls); i++ {
		gap := calls[i].at.Sub(calls[i-1].at)
		assert.GreaterOrEqual(t, gap, delays[i-1], "retry %d ran before its backoff elapsed", i)
	}
	assert.Zero(t, exhausted)
}

func TestProcessor_AlwaysFailingExhaustsOnce(t *testing.T) {
	mem := NewMemoryQueue(16)
	defer mem.Close()
	q := &recordingQueue{MemoryQueue: mem}

	var log invocationLog
	exhaustedCh := make(chan *Job, 4)

	proc := func(ctx context.Context, job *client.Job) *lmstfyx.JobResp {
		log.add(attemptOf(t, job))
		return lmstfyx.Release(nil)
	}
	onExhausted := func(ctx context.Context, job *Job) error {
		exhaustedCh <- job
		return nil
	}

	stop := startPipeline(t, q, proc, onExhausted, RetryPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond})
	publishJob(t, mem)

	var last *Job
	select {
	case last = <-exhaustedCh:
	case <-time.After(3 * time.Second):
		t.Fatal("exhaustion hook never fired")
	}

	// 确认没有额外的投递
	time.Sleep(80 * time.Millisecond)
	stop()

	assert.Len(t, log.all(), 3)
	assert.Len(t, exhaustedCh, 0, "exhaustion must fire exactly once")
	assert.Equal(t, 3, last.Payload.Data.Attempt)
	assert.Equal(t, "conv-1", last.Payload.Data.ID)
}

func TestProcessor_BuryIsTerminal(t *testing.T) {
	mem := NewMemoryQueue(16)
	defer mem.Close()
	q := &recordingQueue{MemoryQueue: mem}

	var log invocationLog
	done := make(chan struct{}, 1)
	proc := func(ctx context.Context, job *client.Job) *lmstfyx.JobResp {
		log.add(attemptOf(t, job))
		done <- struct{}{}
		return lmstfyx.Bury(nil)
	}

	stop := startPipeline(t, q, proc, nil, RetryPolicy{BaseDelay: time.Millisecond})
	publishJob(t, mem)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("job never processed")
	}
	time.Sleep(30 * time.Millisecond)
	stop()

	delays, acks := q.snapshot()
	assert.Len(t, log.all(), 1)
	assert.Empty(t, delays)
	assert.Equal(t, 1, acks)
}

func TestProcessor_DrainsBufferedMessagesOnShutdown(t *testing.T) {
	mem := NewMemoryQueue(16)
	defer mem.Close()

	var mu sync.Mutex
	processed := 0
	proc := func(ctx context.Context, job *client.Job) *lmstfyx.JobResp {
		mu.Lock()
		processed++
		mu.Unlock()
		return lmstfyx.Success(nil)
	}

	processor := NewProcessor(&ProcessorConfig{Concurrency: 1, BufferSize: 3, Timeout: time.Second}, proc, mem, nil, logger.NewNop())
	input := make(chan *Message, 3)
	for i := 0; i < 3; i++ {
		input <- &Message{ID: "m", Queue: testQueue, Data: []byte(`{}`)}
	}

	processor.SignalShutdown()
	processor.Start(context.Background(), input)
	processor.Wait()

	assert.Equal(t, 3, processed)
}

// flakyPublishQueue 第一次重投失败
type flakyPublishQueue struct {
	*MemoryQueue
	mu     sync.Mutex
	failed bool
}

func (f *flakyPublishQueue) Publish(queue string, data []byte, delay time.Duration) (string, error) {
	f.mu.Lock()
	fail := delay > 0 && !f.failed
	f.failed = f.failed || fail
	f.mu.Unlock()
	if fail {
		return "", errors.New("queue unavailable")
	}
	return f.MemoryQueue.Publish(queue, data, delay)
}

func TestProcessor_RepublishFailureFallsBackToRedelivery(t *testing.T) {
	mem := NewMemoryQueue(16)
	defer mem.Close()
	q := &flakyPublishQueue{MemoryQueue: mem}

	var log invocationLog
	done := make(chan struct{})
	proc := func(ctx context.Context, job *client.Job) *lmstfyx.JobResp {
		if log.add(attemptOf(t, job)) < 2 {
			return lmstfyx.Release(nil)
		}
		close(done)
		return lmstfyx.Success(nil)
	}

	stop := startPipelineTTR(t, q, proc, nil, RetryPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond}, 50*time.Millisecond)
	publishJob(t, mem)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("job lost after failed republish")
	}
	stop()

	// 未 ACK 的原消息经 TTR 重投，attempt 不变
	calls := log.all()
	require.Len(t, calls, 2)
	assert.Equal(t, 1, calls[1].attempt)
}
