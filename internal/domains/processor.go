package domains

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bitleak/lmstfy/client"
	"github.com/google/uuid"

	"github.com/kennteohstorehub/BeepChatBot/internal/domains/common"
	"github.com/kennteohstorehub/BeepChatBot/internal/framework"
	"github.com/kennteohstorehub/BeepChatBot/pkg/errorutil"
	"github.com/kennteohstorehub/BeepChatBot/pkg/lmstfyx"
	"github.com/kennteohstorehub/BeepChatBot/pkg/logger"
)

// JobObserver 任务处理指标
type JobObserver interface {
	ObserveJob(actionType, result string)
}

// GetProcess 返回核心处理函数（注入到 Processor）
func GetProcess(log logger.Logger, deps *common.Deps, observer JobObserver) lmstfyx.Proc {
	return func(ctx context.Context, lmstfyJob *client.Job) *lmstfyx.JobResp {
		startTime := time.Now()

		// 1. 解析 Job
		base := &framework.BaseHandler{}
		if err := base.ParseJob(ctx, lmstfyJob.Data); err != nil {
			log.Errorf(ctx, "[GetProcess] parseJob failed: %v", err)
			observe(observer, "invalid", lmstfyx.JobRespStatusBury)
			return lmstfyx.Bury(nil)
		}
		meta := base.GetMeta()
		if meta.RequestID == "" {
			meta.RequestID = uuid.New().String()
		}

		// 2. 注入 TraceID 到 Context
		ctx = logger.WithValue(ctx, logger.KeyTraceID, meta.RequestID)
		ctx = logger.WithValue(ctx, logger.KeyActionType, meta.ActionType)

		log.Infof(ctx, "[GetProcess] Processing job: action_type=%s, id=%s, attempt=%d/%d",
			meta.ActionType, meta.ID, meta.Attempt, meta.MaxAttempts)

		// 3. 从 HandlerMap 获取 Handler
		factory, ok := HandlerMap[meta.ActionType]
		if !ok {
			log.Errorf(ctx, "[GetProcess] handler not found for action_type: %s", meta.ActionType)
			observe(observer, meta.ActionType, lmstfyx.JobRespStatusBury)
			return lmstfyx.Bury(nil)
		}

		// 4. 调用 Handler（捕获 panic）
		resp := run(ctx, factory, base, deps, log)

		// 5. 记录处理时长
		log.Infof(ctx, "[GetProcess] Processing complete: action=%s, duration=%v", resp.Action, time.Since(startTime))
		observe(observer, meta.ActionType, resp.Action)
		return resp
	}
}

func run(ctx context.Context, factory HandlerFactory, base *framework.BaseHandler, deps *common.Deps, log logger.Logger) (resp *lmstfyx.JobResp) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf(ctx, "[GetProcess] handler panic: %v", r)
			resp = lmstfyx.Bury(nil)
		}
	}()

	handler, err := factory(ctx, base, deps)
	if err != nil {
		log.Errorf(ctx, "[GetProcess] handler creation failed: %v", err)
		return toJobResp(nil, err)
	}

	data, err := handler.Handle(ctx)
	if err != nil {
		log.Warnf(ctx, "[GetProcess] handler failed: %v", err)
	}
	return toJobResp(data, err)
}

// toJobResp 根据错误是否可重试决定 ACK / Release / Bury
func toJobResp(data []byte, err error) *lmstfyx.JobResp {
	switch {
	case err == nil:
		return lmstfyx.Success(data)
	case errorutil.IsRetryable(err):
		return lmstfyx.Release(data)
	default:
		return lmstfyx.Bury(data)
	}
}

func observe(o JobObserver, actionType string, action lmstfyx.JobRespStatus) {
	if o == nil {
		return
	}
	o.ObserveJob(actionType, action.String())
}

// ExhaustionHook resolve_order 重试耗尽后发布一次性的 escalate 任务
func ExhaustionHook(pub framework.Publisher, escalateQueue string, log logger.Logger) framework.ExhaustedFunc {
	return func(ctx context.Context, job *framework.Job) error {
		data := job.Payload.Data
		if data.ActionType != common.ActionResolveOrder {
			log.Warnf(ctx, "[Exhaustion] dropping exhausted %s job %s", data.ActionType, data.ID)
			return nil
		}

		var order common.ResolveOrderData
		if err := json.Unmarshal(data.Data, &order); err != nil {
			return fmt.Errorf("decode exhausted job %s: %w", data.ID, err)
		}

		esc, err := framework.NewJob(common.ActionEscalate, data.ID, common.EscalateData{
			ConversationID: order.ConversationID,
			UserID:         order.UserID,
			OrderNumber:    order.OrderNumber,
			Reason:         "exhausted",
			Attempts:       data.Attempt,
		})
		if err != nil {
			return err
		}
		esc.Payload.Data.RequestID = data.RequestID
		esc.Payload.Data.OrgID = data.OrgID
		esc.Payload.Data.MaxAttempts = 1

		raw, err := esc.Encode()
		if err != nil {
			return err
		}
		jobID, err := pub.Publish(escalateQueue, raw, 0)
		if err != nil {
			return fmt.Errorf("publish escalate job: %w", err)
		}
		log.Infof(ctx, "[Exhaustion] job %s escalated as %s", data.ID, jobID)
		return nil
	}
}
