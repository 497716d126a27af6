package lmstfy

import (
	"fmt"
	"math"
	"time"

	"github.com/bitleak/lmstfy/client"

	"github.com/kennteohstorehub/BeepChatBot/internal/framework"
)

// redeliveryTries lmstfy 层面的投递次数：消费后未 ACK（进程崩溃）时由 TTR 触发重投。
// 业务重试由 framework.Processor 重新发布完成，与此无关。
const redeliveryTries uint16 = 2

// Client Lmstfy 客户端封装
type Client struct {
	cli       *client.LmstfyClient
	namespace string
}

// NewClient 创建 Lmstfy 客户端
func NewClient(host string, port int, namespace string, token string) (*Client, error) {
	if host == "" {
		return nil, fmt.Errorf("lmstfy host is required")
	}
	cli := client.NewLmstfyClient(host, port, namespace, token)
	return &Client{
		cli:       cli,
		namespace: namespace,
	}, nil
}

// Consume 消费消息（实现 MessageSource 接口）
func (c *Client) Consume(queue string, timeout time.Duration, ttr time.Duration) (*framework.Message, error) {
	job, err := c.cli.Consume(queue, seconds(ttr), seconds(timeout))
	if err != nil {
		return nil, fmt.Errorf("lmstfy consume failed: %w", err)
	}

	// 超时未拉到消息
	if job == nil {
		return nil, nil
	}

	return &framework.Message{
		ID:    job.ID,
		Queue: job.Queue,
		Data:  job.Data,
	}, nil
}

// Ack 确认消息（实现 MessageSource 接口）
func (c *Client) Ack(queue string, jobID string) error {
	if err := c.cli.Ack(queue, jobID); err != nil {
		return fmt.Errorf("lmstfy ack failed: %w", err)
	}
	return nil
}

// Publish 发布消息（实现 Publisher 接口），delay 向上取整到秒
func (c *Client) Publish(queue string, data []byte, delay time.Duration) (string, error) {
	jobID, err := c.cli.Publish(queue, data, 0, redeliveryTries, seconds(delay))
	if err != nil {
		return "", fmt.Errorf("lmstfy publish failed: %w", err)
	}
	return jobID, nil
}

// Size 返回队列中待消费的消息数
func (c *Client) Size(queue string) (int, error) {
	size, err := c.cli.QueueSize(queue)
	if err != nil {
		return 0, fmt.Errorf("lmstfy queue size failed: %w", err)
	}
	return size, nil
}

// Close lmstfy 客户端基于 HTTP，无需释放资源
func (c *Client) Close() error {
	return nil
}

func seconds(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32(math.Ceil(d.Seconds()))
}
