package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jobpilot/assistant-api/internal/agent"
	"github.com/jobpilot/assistant-api/internal/llm"
	"github.com/jobpilot/assistant-api/internal/model"
	"github.com/jobpilot/assistant-api/internal/store"
	"github.com/jobpilot/assistant-api/pkg/logger"
)

type fakeClient struct {
	responses []*llm.CompletionResponse
	calls     int
}

func (c *fakeClient) next() *llm.CompletionResponse {
	if c.calls >= len(c.responses) {
		return &llm.CompletionResponse{Content: "fin"}
	}
	resp := c.responses[c.calls]
	c.calls++
	return resp
}

func (c *fakeClient) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return c.next(), nil
}

func (c *fakeClient) CompleteStream(ctx context.Context, req *llm.CompletionRequest, cb llm.StreamCallback) (*llm.CompletionResponse, error) {
	resp := c.next()
	for i, r := range []rune(resp.Content) {
		if err := cb(string(r), i); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (c *fakeClient) Name() string { return "fake" }

func newTestChat(t *testing.T, client llm.Client) (*Chat, *store.Store) {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	loop := agent.New(client, s, agent.DefaultMaxIterations, logger.NewNop())
	return NewChat(s, loop, nil, logger.NewNop()), s
}

func TestSendCreatesConversationLazily(t *testing.T) {
	chat, s := newTestChat(t, &fakeClient{responses: []*llm.CompletionResponse{
		{Content: "Bonjour!"},
	}})
	ctx := context.Background()

	resp, err := chat.Send(ctx, "user-1", "", "Salut, peux-tu m'aider?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.ConversationID == "" {
		t.Fatal("no conversation ID returned")
	}
	if resp.Response != "Bonjour!" {
		t.Errorf("response = %q", resp.Response)
	}

	conv, err := s.GetConversation(ctx, "user-1", resp.ConversationID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if conv.Title != "Salut, peux-tu m'aider?" {
		t.Errorf("title = %q, want the message itself", conv.Title)
	}

	msgs, err := s.Messages(ctx, resp.ConversationID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want user + assistant", len(msgs))
	}
	if msgs[0].Role != model.RoleUser || msgs[1].Role != model.RoleAssistant {
		t.Errorf("roles = %q, %q", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].Content != "Bonjour!" {
		t.Errorf("assistant content = %q", msgs[1].Content)
	}
}

func TestSendTruncatesLongTitle(t *testing.T) {
	chat, s := newTestChat(t, &fakeClient{responses: []*llm.CompletionResponse{
		{Content: "ok"},
	}})
	ctx := context.Background()

	long := strings.Repeat("é", 80)
	resp, err := chat.Send(ctx, "user-1", "", long)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	conv, err := s.GetConversation(ctx, "user-1", resp.ConversationID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	want := strings.Repeat("é", 50) + "…"
	if conv.Title != want {
		t.Errorf("title = %q, want 50 runes plus ellipsis", conv.Title)
	}
}

func TestSendContinuesExistingConversation(t *testing.T) {
	chat, s := newTestChat(t, &fakeClient{responses: []*llm.CompletionResponse{
		{Content: "première"},
		{Content: "deuxième"},
	}})
	ctx := context.Background()

	first, err := chat.Send(ctx, "user-1", "", "un")
	if err != nil {
		t.Fatalf("first send: %v", err)
	}
	second, err := chat.Send(ctx, "user-1", first.ConversationID, "deux")
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Errorf("conversation changed between turns")
	}

	msgs, err := s.Messages(ctx, first.ConversationID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs))
	}
}

func TestSendUnknownConversation(t *testing.T) {
	chat, _ := newTestChat(t, &fakeClient{})

	_, err := chat.Send(context.Background(), "user-1", "00000000-0000-0000-0000-000000000000", "salut")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSendStreamEventGrammar(t *testing.T) {
	chat, s := newTestChat(t, &fakeClient{responses: []*llm.CompletionResponse{
		{Content: "Salut!"},
	}})
	ctx := context.Background()

	var events []model.StreamEvent
	err := chat.SendStream(ctx, "user-1", "", "bonjour", func(ev model.StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("send stream: %v", err)
	}

	if events[0].Type != model.EventConversationID || events[0].Value == "" {
		t.Fatalf("first event = %+v, want conversationId", events[0])
	}
	last := events[len(events)-1]
	if last.Type != model.EventDone {
		t.Fatalf("last event = %+v, want done", last)
	}

	var text string
	for _, ev := range events {
		if ev.Type == model.EventText {
			text += ev.Value
		}
	}
	if text != "Salut!" {
		t.Errorf("concatenated text = %q", text)
	}

	// The persisted assistant message matches what was streamed.
	msgs, err := s.Messages(ctx, events[0].Value)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 || msgs[1].Content != text {
		t.Errorf("persisted = %+v, want assistant content %q", msgs, text)
	}
}

func TestSendStreamPersistsAfterSinkFailure(t *testing.T) {
	chat, s := newTestChat(t, &fakeClient{responses: []*llm.CompletionResponse{
		{Content: "Réponse complète"},
	}})
	ctx := context.Background()

	// The sink dies immediately, as a disconnected SSE client would.
	var convID string
	err := chat.SendStream(ctx, "user-1", "", "bonjour", func(ev model.StreamEvent) error {
		if ev.Type == model.EventConversationID {
			convID = ev.Value
		}
		return errors.New("client gone")
	})
	if err != nil {
		t.Fatalf("send stream: %v", err)
	}
	if convID == "" {
		t.Fatal("conversation ID never reached the sink")
	}

	msgs, err := s.Messages(ctx, convID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 despite the dead sink", len(msgs))
	}
	if msgs[1].Content != "Réponse complète" {
		t.Errorf("assistant content = %q", msgs[1].Content)
	}
}

func TestSendStreamErrorPersistsNoAssistantMessage(t *testing.T) {
	// An undeclared tool aborts the turn.
	chat, s := newTestChat(t, &fakeClient{responses: []*llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "inconnu"}}},
	}})
	ctx := context.Background()

	var events []model.StreamEvent
	err := chat.SendStream(ctx, "user-1", "", "bonjour", func(ev model.StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	if err == nil {
		t.Fatal("expected error")
	}

	last := events[len(events)-1]
	if last.Type != model.EventError {
		t.Fatalf("last event = %+v, want error", last)
	}

	msgs, err := s.Messages(ctx, events[0].Value)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != model.RoleUser {
		t.Errorf("msgs = %+v, want only the user message", msgs)
	}
}
