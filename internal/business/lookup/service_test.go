package lookup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/cache"
	"github.com/kennteohstorehub/BeepChatBot/internal/business/escalation"
	"github.com/kennteohstorehub/BeepChatBot/internal/business/platform"
	"github.com/kennteohstorehub/BeepChatBot/internal/business/resolver"
	"github.com/kennteohstorehub/BeepChatBot/pkg/logger"
)

// fakeConversation 记录会话操作
type fakeConversation struct {
	mu       sync.Mutex
	replies  []string
	notes    []string
	tags     [][]string
	assigned []string
	replyErr error
}

func (f *fakeConversation) Reply(ctx context.Context, id, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replyErr != nil {
		return f.replyErr
	}
	f.replies = append(f.replies, body)
	return nil
}

func (f *fakeConversation) AddNote(ctx context.Context, id, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, note)
	return nil
}

func (f *fakeConversation) Tag(ctx context.Context, id string, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags = append(f.tags, tags)
	return nil
}

func (f *fakeConversation) AssignToTeam(ctx context.Context, id, team string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned = append(f.assigned, team)
	return nil
}

type fakeTickets struct {
	mu       sync.Mutex
	requests []platform.TicketRequest
}

func (f *fakeTickets) CreateTicket(ctx context.Context, req platform.TicketRequest) (*platform.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return &platform.Ticket{ID: "T-100"}, nil
}

type memRecorder struct {
	mu      sync.Mutex
	records []Record
}

func (m *memRecorder) RecordLookup(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

type harness struct {
	conv     *fakeConversation
	tickets  *fakeTickets
	recorder *memRecorder
	service  *Service
}

func newHarness(t *testing.T, handler http.HandlerFunc) *harness {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := logger.NewNop()
	opts := platform.Options{BaseURL: srv.URL, APIKey: "k", APISecret: "s", Timeout: 200 * time.Millisecond}
	res := resolver.New(cache.NewMemory(), []platform.Client{
		platform.NewLalamoveClient(opts),
		platform.NewFoodpandaClient(opts),
	}, nil, resolver.Options{}, log)

	h := &harness{conv: &fakeConversation{}, tickets: &fakeTickets{}, recorder: &memRecorder{}}
	policy := escalation.NewPolicy(h.conv, h.tickets, nil, "team-9", log)
	h.service = NewService(res, h.conv, policy, log, WithRecorder(h.recorder))
	return h
}

func request(ref string) Request {
	return Request{
		ConversationID: "conv-1",
		UserID:         "user-1",
		Reference:      platform.NewOrderReference(ref, platform.Unknown),
	}
}

func TestLookup_Found(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orderId":"LM12345678","status":"PICKED_UP","driverInfo":{"name":"Ali"}}`))
	})

	res, err := h.service.Lookup(context.Background(), request("LM12345678"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFound, res.Outcome)
	assert.Equal(t, "Your order has been picked up and is on the way", res.Status.StatusText)

	require.Len(t, h.conv.replies, 1)
	assert.Contains(t, h.conv.replies[0], "I found your lalamove order")
	require.Len(t, h.recorder.records, 1)
	assert.Equal(t, "lalamove", h.recorder.records[0].Platform)
	assert.Equal(t, "PICKED_UP", h.recorder.records[0].Status)
	assert.False(t, h.recorder.records[0].CacheHit)

	_, err = h.service.Lookup(context.Background(), request("LM12345678"))
	require.NoError(t, err)
	assert.True(t, h.recorder.records[1].CacheHit)
}

func TestLookup_NotFoundFilesTicket(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	res, err := h.service.Lookup(context.Background(), request("FP0000000000"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.Equal(t, "T-100", res.TicketID)

	require.Len(t, h.tickets.requests, 1)
	assert.Equal(t, "order_not_found", h.tickets.requests[0].Type)
	assert.Equal(t, "FP0000000000", h.tickets.requests[0].OrderNumber)
	assert.Equal(t, [][]string{{"bot-escalation", "order-not-found"}}, h.conv.tags)
	assert.Equal(t, []string{"Bot could not find order FP0000000000. Ticket created: T-100"}, h.conv.notes)
	assert.Empty(t, h.conv.assigned, "not found must never hand off to a human team")
	require.Len(t, h.conv.replies, 1)
	assert.Contains(t, h.conv.replies[0], "I couldn't find order FP0000000000")
}

func TestLookup_TransientIsReturnedWithoutSideEffects(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := h.service.Lookup(context.Background(), request("LM12345678"))
	assert.ErrorIs(t, err, platform.ErrTransient)
	assert.Empty(t, h.conv.replies)
	assert.Empty(t, h.tickets.requests)
	require.Len(t, h.recorder.records, 1)
	assert.Equal(t, OutcomeUnavailable, h.recorder.records[0].Outcome)
}

func TestLookup_ReplyFailureIsRetryable(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orderId":"LM12345678","status":"COMPLETED"}`))
	})
	h.conv.replyErr = errors.New("intercom 502")

	_, err := h.service.Lookup(context.Background(), request("LM12345678"))
	assert.ErrorIs(t, err, ErrReplyFailed)
}

func TestEscalate_NeverCreatesTicket(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {})

	err := h.service.Escalate(context.Background(), escalation.Case{
		ConversationID: "conv-1",
		OrderNumber:    "LM12345678",
		Reason:         "exhausted",
	})
	require.NoError(t, err)
	assert.Empty(t, h.tickets.requests)
	assert.Equal(t, []string{"team-9"}, h.conv.assigned)
	assert.Equal(t, [][]string{{"requires-human", "bot-error"}}, h.conv.tags)
	require.Len(t, h.conv.replies, 1)
	assert.Contains(t, h.conv.replies[0], "connect you with a human agent")
}
