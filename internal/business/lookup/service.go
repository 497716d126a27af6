package lookup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/escalation"
	"github.com/kennteohstorehub/BeepChatBot/internal/business/platform"
	"github.com/kennteohstorehub/BeepChatBot/internal/business/reply"
	"github.com/kennteohstorehub/BeepChatBot/pkg/logger"
)

// 查询结果
const (
	OutcomeFound       = "found"
	OutcomeNotFound    = "not_found"
	OutcomeUnavailable = "unavailable"
)

// ErrReplyFailed 状态已查到但回复发送失败，可重试（重试时命中缓存）
var ErrReplyFailed = errors.New("reply delivery failed")

// Record 查询审计记录
type Record struct {
	ConversationID string
	OrderNumber    string
	Platform       string
	Status         string
	Outcome        string
	ResponseTime   time.Duration
	CacheHit       bool
}

// Resolver 订单状态解析
type Resolver interface {
	Resolve(ctx context.Context, ref platform.OrderReference) (*platform.CanonicalStatus, error)
}

// Replier 向用户发送消息
type Replier interface {
	Reply(ctx context.Context, conversationID, body string) error
}

// Escalator 升级处理
type Escalator interface {
	OrderNotFound(ctx context.Context, c escalation.Case) (*escalation.Outcome, error)
	ProcessingExhausted(ctx context.Context, c escalation.Case) error
}

// Recorder 审计落库
type Recorder interface {
	RecordLookup(ctx context.Context, rec Record) error
}

// Observer 查询指标
type Observer interface {
	ObserveLookup(platform, outcome string, elapsed time.Duration, cacheHit bool)
	ObserveEscalation(kind string)
}

// Request 一次订单查询请求
type Request struct {
	ConversationID string
	UserID         string
	Reference      platform.OrderReference
}

// Result 查询结果，Status 用于日志
type Result struct {
	Outcome  string
	Status   *platform.CanonicalStatus
	Reply    string
	TicketID string
}

// Service 查询 -> 回复 -> 审计 -> 升级
type Service struct {
	resolver  Resolver
	replier   Replier
	escalator Escalator
	formatter *reply.Formatter
	recorder  Recorder
	observer  Observer
	log       logger.Logger
}

// Option 可选依赖
type Option func(*Service)

// WithRecorder 审计落库
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithObserver 指标
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// NewService 创建查询服务
func NewService(resolver Resolver, replier Replier, escalator Escalator, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		resolver:  resolver,
		replier:   replier,
		escalator: escalator,
		formatter: reply.NewFormatter(),
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup 解析订单并回复用户。
// 临时错误原样返回（包裹 platform.ErrTransient），由队列重试；订单不存在时升级并回复，不返回错误。
func (s *Service) Lookup(ctx context.Context, req Request) (*Result, error) {
	ctx = logger.WithValue(ctx, logger.KeyOrderNumber, req.Reference.RawNumber)
	start := time.Now()

	status, err := s.resolver.Resolve(ctx, req.Reference)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		s.audit(ctx, req, Record{
			Platform:     string(status.Platform),
			Status:       status.RawStatusCode,
			Outcome:      OutcomeFound,
			ResponseTime: elapsed,
			CacheHit:     status.FromCache,
		})
		body := s.formatter.Status(status)
		if err := s.replier.Reply(ctx, req.ConversationID, body); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReplyFailed, err)
		}
		s.log.Infof(ctx, "[Lookup] found order %s on %s: %s", req.Reference.RawNumber, status.Platform, status.RawStatusCode)
		return &Result{Outcome: OutcomeFound, Status: status, Reply: body}, nil

	case errors.Is(err, platform.ErrNotFound):
		s.audit(ctx, req, Record{
			Platform:     string(req.Reference.PlatformHint),
			Outcome:      OutcomeNotFound,
			ResponseTime: elapsed,
		})
		return s.notFound(ctx, req), nil

	default:
		s.audit(ctx, req, Record{
			Platform:     string(req.Reference.PlatformHint),
			Outcome:      OutcomeUnavailable,
			ResponseTime: elapsed,
		})
		s.log.Warnf(ctx, "[Lookup] order %s unavailable: %v", req.Reference.RawNumber, err)
		return nil, err
	}
}

// notFound 订单不存在：工单 + 标签 + 备注，再回复用户；失败只记录日志，避免重试时重复建单
func (s *Service) notFound(ctx context.Context, req Request) *Result {
	out, err := s.escalator.OrderNotFound(ctx, escalation.Case{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		OrderNumber:    req.Reference.RawNumber,
	})
	if err != nil {
		s.log.Errorf(ctx, "[Lookup] not-found escalation incomplete: %v", err)
	}
	if s.observer != nil {
		s.observer.ObserveEscalation(OutcomeNotFound)
	}

	body := s.formatter.NotFound(req.Reference.RawNumber)
	if err := s.replier.Reply(ctx, req.ConversationID, body); err != nil {
		s.log.Errorf(ctx, "[Lookup] failed to send not-found reply: %v", err)
	}

	res := &Result{Outcome: OutcomeNotFound, Reply: body}
	if out != nil {
		res.TicketID = out.TicketID
	}
	return res
}

// Escalate 重试耗尽后转人工：致歉回复 + 分配团队 + 标签 + 备注。尽力执行，不再重试。
func (s *Service) Escalate(ctx context.Context, c escalation.Case) error {
	var errs []error
	if err := s.replier.Reply(ctx, c.ConversationID, s.formatter.Handoff()); err != nil {
		errs = append(errs, fmt.Errorf("send handoff reply: %w", err))
	}
	if err := s.escalator.ProcessingExhausted(ctx, c); err != nil {
		errs = append(errs, err)
	}
	if s.observer != nil {
		s.observer.ObserveEscalation("exhausted")
	}
	return errors.Join(errs...)
}

func (s *Service) audit(ctx context.Context, req Request, rec Record) {
	rec.ConversationID = req.ConversationID
	rec.OrderNumber = req.Reference.RawNumber
	if s.observer != nil {
		s.observer.ObserveLookup(rec.Platform, rec.Outcome, rec.ResponseTime, rec.CacheHit)
	}
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordLookup(ctx, rec); err != nil {
		s.log.Warnf(ctx, "[Lookup] failed to record lookup audit: %v", err)
	}
}
