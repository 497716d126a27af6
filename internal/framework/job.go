package framework

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Job 标准 Job 结构
type Job struct {
	Payload *JobPayload `json:"payload"`
}

// JobPayload Job 负载
type JobPayload struct {
	Data *JobPayloadData `json:"data"`
}

// JobPayloadData Job 数据
// Attempt 与 MaxAttempts 只由队列运行时维护，业务 Handler 只读
type JobPayloadData struct {
	RequestID   string          `json:"request_id"`
	ActionType  string          `json:"action_type"`
	OrgID       string          `json:"org_id"`
	ID          string          `json:"id"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	Data        json.RawMessage `json:"data"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// JobMeta Job 元信息
type JobMeta struct {
	RequestID   string
	ActionType  string
	OrgID       string
	ID          string
	Attempt     int
	MaxAttempts int
}

// NewJob 构造首次投递的 Job
func NewJob(actionType, id string, data interface{}) (*Job, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal job data failed: %w", err)
	}
	return &Job{
		Payload: &JobPayload{
			Data: &JobPayloadData{
				RequestID:  uuid.New().String(),
				ActionType: actionType,
				OrgID:      "0",
				ID:         id,
				Attempt:    1,
				Data:       raw,
			},
		},
	}, nil
}

// DecodeJob 解析 Job 并校验结构
func DecodeJob(raw []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job failed: %w", err)
	}
	if job.Payload == nil || job.Payload.Data == nil {
		return nil, fmt.Errorf("invalid job structure: payload.data is nil")
	}
	if job.Payload.Data.Attempt <= 0 {
		job.Payload.Data.Attempt = 1
	}
	return &job, nil
}

// Encode 序列化 Job
func (j *Job) Encode() ([]byte, error) {
	return json.Marshal(j)
}

// Meta 提取元信息
func (j *Job) Meta() *JobMeta {
	d := j.Payload.Data
	return &JobMeta{
		RequestID:   d.RequestID,
		ActionType:  d.ActionType,
		OrgID:       d.OrgID,
		ID:          d.ID,
		Attempt:     d.Attempt,
		MaxAttempts: d.MaxAttempts,
	}
}
