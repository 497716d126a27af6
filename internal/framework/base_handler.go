package framework

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var errEmptyPayload = errors.New("empty business payload")

// BaseHandler 业务 Handler 共用部分：Job 解析、业务数据解码、结果封装
type BaseHandler struct {
	meta *JobMeta
	data json.RawMessage // payload.data.data
}

// Outcome 处理结果，写入 JobResp 供日志与调试
type Outcome struct {
	Processed bool        `json:"processed"`
	Attempt   int         `json:"attempt"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// ParseJob 解析 lmstfy 投递的原始数据
func (b *BaseHandler) ParseJob(ctx context.Context, raw []byte) error {
	job, err := DecodeJob(raw)
	if err != nil {
		return fmt.Errorf("parse job failed: %w", err)
	}
	b.meta = job.Meta()
	b.data = job.Payload.Data.Data
	return nil
}

// GetMeta Job 元信息；ParseJob 之前为 nil
func (b *BaseHandler) GetMeta() *JobMeta {
	return b.meta
}

// DecodePayload 将业务数据解码到 v
func (b *BaseHandler) DecodePayload(v interface{}) error {
	if len(b.data) == 0 {
		return errEmptyPayload
	}
	if err := json.Unmarshal(b.data, v); err != nil {
		return fmt.Errorf("unmarshal business payload failed: %w", err)
	}
	return nil
}

// Succeed 封装成功结果
func (b *BaseHandler) Succeed(ctx context.Context, result interface{}) ([]byte, error) {
	return b.encode(Outcome{Processed: true, Attempt: b.attempt(), Result: result})
}

// Fail 封装失败结果；cause 原样返回，由上层判断是否重试
func (b *BaseHandler) Fail(ctx context.Context, partial interface{}, cause error) ([]byte, error) {
	data, err := b.encode(Outcome{Attempt: b.attempt(), Result: partial, Error: cause.Error()})
	if err != nil {
		return nil, err
	}
	return data, cause
}

func (b *BaseHandler) attempt() int {
	if b.meta == nil {
		return 0
	}
	return b.meta.Attempt
}

func (b *BaseHandler) encode(o Outcome) ([]byte, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshal outcome failed: %w", err)
	}
	return data, nil
}
