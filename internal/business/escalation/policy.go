package escalation

import (
	"context"
	"errors"
	"fmt"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/platform"
	"github.com/kennteohstorehub/BeepChatBot/pkg/logger"
)

// 会话标签
const (
	TagBotEscalation = "bot-escalation"
	TagOrderNotFound = "order-not-found"
	TagRequiresHuman = "requires-human"
	TagBotError      = "bot-error"
)

// TicketTypeOrderNotFound 订单不存在工单类型
const TicketTypeOrderNotFound = "order_not_found"

// Conversation 会话前端的升级操作
type Conversation interface {
	AddNote(ctx context.Context, conversationID, note string) error
	Tag(ctx context.Context, conversationID string, tags []string) error
	AssignToTeam(ctx context.Context, conversationID, teamID string) error
}

// TicketRecord 工单审计记录
type TicketRecord struct {
	TicketID       string
	ConversationID string
	OrderNumber    string
	Reason         string
}

// TicketRecorder 工单审计
type TicketRecorder interface {
	RecordTicket(ctx context.Context, rec TicketRecord) error
}

// Case 待升级的会话
type Case struct {
	ConversationID string
	UserID         string
	OrderNumber    string
	Reason         string
}

// Outcome 订单不存在升级结果
type Outcome struct {
	TicketID string
}

// Policy 升级策略：订单不存在 -> 工单；处理失败耗尽 -> 转人工。两条路径互不交叉。
// 所有动作尽力执行，单个动作失败不影响后续动作，错误合并返回。
type Policy struct {
	conv     Conversation
	tickets  platform.TicketCreator
	recorder TicketRecorder
	teamID   string
	log      logger.Logger
}

// NewPolicy 创建升级策略；recorder 可为 nil
func NewPolicy(conv Conversation, tickets platform.TicketCreator, recorder TicketRecorder, teamID string, log logger.Logger) *Policy {
	return &Policy{
		conv:     conv,
		tickets:  tickets,
		recorder: recorder,
		teamID:   teamID,
		log:      log,
	}
}

// OrderNotFound 创建工单、打标签、写内部备注；不转人工
func (p *Policy) OrderNotFound(ctx context.Context, c Case) (*Outcome, error) {
	var errs []error
	out := &Outcome{}

	if p.tickets == nil {
		errs = append(errs, errors.New("ticketing not configured"))
	} else {
		ticket, err := p.tickets.CreateTicket(ctx, platform.TicketRequest{
			Type:           TicketTypeOrderNotFound,
			ConversationID: c.ConversationID,
			OrderNumber:    c.OrderNumber,
			UserID:         c.UserID,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("create ticket: %w", err))
		} else {
			out.TicketID = ticket.ID
		}
	}

	if err := p.conv.Tag(ctx, c.ConversationID, []string{TagBotEscalation, TagOrderNotFound}); err != nil {
		errs = append(errs, fmt.Errorf("tag conversation: %w", err))
	}

	note := fmt.Sprintf("Bot could not find order %s. Ticket created: %s", c.OrderNumber, out.TicketID)
	if out.TicketID == "" {
		note = fmt.Sprintf("Bot could not find order %s. Ticket creation failed, please follow up manually.", c.OrderNumber)
	}
	if err := p.conv.AddNote(ctx, c.ConversationID, note); err != nil {
		errs = append(errs, fmt.Errorf("add note: %w", err))
	}

	if out.TicketID != "" && p.recorder != nil {
		rec := TicketRecord{
			TicketID:       out.TicketID,
			ConversationID: c.ConversationID,
			OrderNumber:    c.OrderNumber,
			Reason:         TicketTypeOrderNotFound,
		}
		if err := p.recorder.RecordTicket(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("record ticket: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		p.log.Errorf(ctx, "[Escalation] order-not-found escalation for %s incomplete: %v", c.ConversationID, err)
	} else {
		p.log.Infof(ctx, "[Escalation] order %s not found, ticket %s created", c.OrderNumber, out.TicketID)
	}
	return out, err
}

// ProcessingExhausted 转人工团队、打标签、写内部备注；不创建订单工单
func (p *Policy) ProcessingExhausted(ctx context.Context, c Case) error {
	var errs []error

	if p.teamID == "" {
		errs = append(errs, errors.New("support team not configured"))
	} else if err := p.conv.AssignToTeam(ctx, c.ConversationID, p.teamID); err != nil {
		errs = append(errs, fmt.Errorf("assign to team: %w", err))
	}

	if err := p.conv.Tag(ctx, c.ConversationID, []string{TagRequiresHuman, TagBotError}); err != nil {
		errs = append(errs, fmt.Errorf("tag conversation: %w", err))
	}

	reason := c.Reason
	if reason == "" {
		reason = "automated lookup failed"
	}
	if err := p.conv.AddNote(ctx, c.ConversationID, "Bot escalation: "+reason); err != nil {
		errs = append(errs, fmt.Errorf("add note: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		p.log.Errorf(ctx, "[Escalation] human handoff for %s incomplete: %v", c.ConversationID, err)
	} else {
		p.log.Infof(ctx, "[Escalation] escalated conversation %s to human agent", c.ConversationID)
	}
	return err
}
