package escalation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/platform"
	"github.com/kennteohstorehub/BeepChatBot/pkg/logger"
)

type mockConversation struct{ mock.Mock }

func (m *mockConversation) AddNote(ctx context.Context, id, note string) error {
	return m.Called(id, note).Error(0)
}

func (m *mockConversation) Tag(ctx context.Context, id string, tags []string) error {
	return m.Called(id, tags).Error(0)
}

func (m *mockConversation) AssignToTeam(ctx context.Context, id, teamID string) error {
	return m.Called(id, teamID).Error(0)
}

type mockTickets struct{ mock.Mock }

func (m *mockTickets) CreateTicket(ctx context.Context, req platform.TicketRequest) (*platform.Ticket, error) {
	args := m.Called(req)
	if t, ok := args.Get(0).(*platform.Ticket); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockRecorder struct{ mock.Mock }

func (m *mockRecorder) RecordTicket(ctx context.Context, rec TicketRecord) error {
	return m.Called(rec).Error(0)
}

var notFoundCase = Case{ConversationID: "conv-1", UserID: "user-1", OrderNumber: "FP0000000000"}

func TestOrderNotFound(t *testing.T) {
	conv := &mockConversation{}
	tickets := &mockTickets{}
	recorder := &mockRecorder{}

	tickets.On("CreateTicket", platform.TicketRequest{
		Type:           TicketTypeOrderNotFound,
		ConversationID: "conv-1",
		OrderNumber:    "FP0000000000",
		UserID:         "user-1",
	}).Return(&platform.Ticket{ID: "T-1"}, nil).Once()
	conv.On("Tag", "conv-1", []string{TagBotEscalation, TagOrderNotFound}).Return(nil).Once()
	conv.On("AddNote", "conv-1", "Bot could not find order FP0000000000. Ticket created: T-1").Return(nil).Once()
	recorder.On("RecordTicket", TicketRecord{
		TicketID:       "T-1",
		ConversationID: "conv-1",
		OrderNumber:    "FP0000000000",
		Reason:         TicketTypeOrderNotFound,
	}).Return(nil).Once()

	p := NewPolicy(conv, tickets, recorder, "team-9", logger.NewNop())
	out, err := p.OrderNotFound(context.Background(), notFoundCase)
	require.NoError(t, err)
	assert.Equal(t, "T-1", out.TicketID)

	conv.AssertExpectations(t)
	tickets.AssertExpectations(t)
	recorder.AssertExpectations(t)
	conv.AssertNotCalled(t, "AssignToTeam", mock.Anything, mock.Anything)
}

func TestOrderNotFound_TicketFailureStillTags(t *testing.T) {
	conv := &mockConversation{}
	tickets := &mockTickets{}

	tickets.On("CreateTicket", mock.Anything).Return(nil, errors.New("ist down")).Once()
	conv.On("Tag", "conv-1", []string{TagBotEscalation, TagOrderNotFound}).Return(nil).Once()
	conv.On("AddNote", "conv-1", mock.MatchedBy(func(note string) bool {
		return note == "Bot could not find order FP0000000000. Ticket creation failed, please follow up manually."
	})).Return(nil).Once()

	p := NewPolicy(conv, tickets, nil, "team-9", logger.NewNop())
	out, err := p.OrderNotFound(context.Background(), notFoundCase)
	assert.ErrorContains(t, err, "ist down")
	assert.Empty(t, out.TicketID)
	conv.AssertExpectations(t)
	conv.AssertNotCalled(t, "AssignToTeam", mock.Anything, mock.Anything)
}

func TestProcessingExhausted(t *testing.T) {
	conv := &mockConversation{}
	tickets := &mockTickets{}

	conv.On("AssignToTeam", "conv-2", "team-9").Return(nil).Once()
	conv.On("Tag", "conv-2", []string{TagRequiresHuman, TagBotError}).Return(nil).Once()
	conv.On("AddNote", "conv-2", "Bot escalation: lalamove unavailable").Return(nil).Once()

	p := NewPolicy(conv, tickets, nil, "team-9", logger.NewNop())
	err := p.ProcessingExhausted(context.Background(), Case{ConversationID: "conv-2", Reason: "lalamove unavailable"})
	require.NoError(t, err)

	conv.AssertExpectations(t)
	tickets.AssertNotCalled(t, "CreateTicket", mock.Anything)
}

func TestProcessingExhausted_BestEffort(t *testing.T) {
	conv := &mockConversation{}
	conv.On("AssignToTeam", "conv-3", "team-9").Return(errors.New("intercom 500")).Once()
	conv.On("Tag", "conv-3", []string{TagRequiresHuman, TagBotError}).Return(errors.New("intercom 500")).Once()
	conv.On("AddNote", "conv-3", "Bot escalation: automated lookup failed").Return(nil).Once()

	p := NewPolicy(conv, nil, nil, "team-9", logger.NewNop())
	err := p.ProcessingExhausted(context.Background(), Case{ConversationID: "conv-3"})
	assert.ErrorContains(t, err, "assign to team")
	assert.ErrorContains(t, err, "tag conversation")
	conv.AssertExpectations(t)
}
