// Package service implements the chat turn lifecycle: conversation
// resolution, message persistence and agent loop orchestration.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jobpilot/assistant-api/internal/agent"
	"github.com/jobpilot/assistant-api/internal/model"
	natsclient "github.com/jobpilot/assistant-api/internal/nats"
	"github.com/jobpilot/assistant-api/internal/store"
	"github.com/jobpilot/assistant-api/pkg/logger"
	"github.com/jobpilot/assistant-api/pkg/metrics"
)

// titleLimit caps auto-generated conversation titles, in runes.
const titleLimit = 50

// Chat coordinates one assistant turn: it resolves or creates the
// conversation, persists the user message, runs the agent loop and
// persists exactly one assistant message per completed turn.
type Chat struct {
	store  *store.Store
	loop   *agent.Loop
	events *natsclient.Client
	logger *logger.Logger
}

// NewChat creates the chat service. events may be nil; fanout is then
// disabled.
func NewChat(st *store.Store, loop *agent.Loop, events *natsclient.Client, log *logger.Logger) *Chat {
	return &Chat{store: st, loop: loop, events: events, logger: log}
}

// Send runs one blocking turn and returns the assistant's reply.
// An empty conversationID starts a new conversation titled from the
// message.
func (c *Chat) Send(ctx context.Context, userID, conversationID, message string) (*model.ChatResponse, error) {
	conv, history, err := c.prepare(ctx, userID, conversationID, message)
	if err != nil {
		return nil, err
	}

	reply, err := c.loop.Run(ctx, userID, history, message, func(name string) {
		c.publishToolUsed(userID, conv.ID, name)
	})
	if err != nil {
		return nil, err
	}

	if err := c.persistAssistant(ctx, userID, conv.ID, reply); err != nil {
		return nil, err
	}

	return &model.ChatResponse{Response: reply, ConversationID: conv.ID}, nil
}

// Sink receives stream events in order. A non-nil error stops
// forwarding; the turn itself keeps running so its outcome is
// persisted.
type Sink func(ev model.StreamEvent) error

// SendStream runs one turn in incremental mode, forwarding events to
// sink. The first event always carries the conversation ID. The turn
// runs to completion even when ctx is canceled or sink fails, so a
// client disconnect never loses the assistant message.
func (c *Chat) SendStream(ctx context.Context, userID, conversationID, message string, sink Sink) error {
	conv, history, err := c.prepare(ctx, userID, conversationID, message)
	if err != nil {
		return err
	}

	forwarding := true
	emit := func(ev model.StreamEvent) {
		if !forwarding {
			return
		}
		if err := sink(ev); err != nil {
			c.logger.Debug("stream sink closed", zap.Error(err))
			forwarding = false
		}
	}

	emit(model.StreamEvent{Type: model.EventConversationID, Value: conv.ID})

	// The loop must not die with the client connection; persistence of
	// the outcome depends on it finishing.
	turnCtx := context.WithoutCancel(ctx)

	for ev := range c.loop.RunStream(turnCtx, userID, history, message) {
		switch ev.Kind {
		case agent.EventText:
			emit(model.StreamEvent{Type: model.EventText, Value: ev.Text})
		case agent.EventToolUsed:
			c.publishToolUsed(userID, conv.ID, ev.ToolName)
			emit(model.StreamEvent{Type: model.EventToolUsed, Value: ev.ToolName})
		case agent.EventError:
			c.logger.Error("streamed turn failed",
				zap.String("user_id", userID),
				zap.String("conversation_id", conv.ID),
				zap.Error(ev.Err),
			)
			emit(model.StreamEvent{Type: model.EventError, Value: "Une erreur est survenue. Réessaie dans un instant."})
			return ev.Err
		case agent.EventDone:
			if err := c.persistAssistant(turnCtx, userID, conv.ID, ev.Final); err != nil {
				emit(model.StreamEvent{Type: model.EventError, Value: "Une erreur est survenue. Réessaie dans un instant."})
				return err
			}
			emit(model.StreamEvent{Type: model.EventDone})
		}
	}

	return nil
}

// prepare resolves the conversation, loads its history and persists
// the user message. History is captured before the append so the new
// message is not duplicated in the model context.
func (c *Chat) prepare(ctx context.Context, userID, conversationID, message string) (*model.Conversation, []model.Message, error) {
	var conv *model.Conversation
	var err error

	if conversationID == "" {
		conv, err = c.store.CreateConversation(ctx, userID, titleFrom(message))
		if err != nil {
			return nil, nil, err
		}
		metrics.ConversationsTotal.Inc()
	} else {
		conv, err = c.store.GetConversation(ctx, userID, conversationID)
		if err != nil {
			return nil, nil, err
		}
	}

	history, err := c.store.Messages(ctx, conv.ID)
	if err != nil {
		return nil, nil, err
	}

	msg, err := c.store.AppendMessage(ctx, conv.ID, model.RoleUser, message)
	if err != nil {
		return nil, nil, err
	}
	metrics.MessagesTotal.WithLabelValues(string(model.RoleUser)).Inc()
	c.publishMessage(userID, conv.ID, msg.ID, model.RoleUser)

	return conv, history, nil
}

func (c *Chat) persistAssistant(ctx context.Context, userID, conversationID, content string) error {
	msg, err := c.store.AppendMessage(ctx, conversationID, model.RoleAssistant, content)
	if err != nil {
		return err
	}
	metrics.MessagesTotal.WithLabelValues(string(model.RoleAssistant)).Inc()
	c.publishMessage(userID, conversationID, msg.ID, model.RoleAssistant)
	return nil
}

func (c *Chat) publishToolUsed(userID, conversationID, tool string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.events.PublishToolUsed(ctx, natsclient.ToolUsedEvent{
		UserID:         userID,
		ConversationID: conversationID,
		Tool:           tool,
		OccurredAt:     time.Now().UTC(),
	})
}

func (c *Chat) publishMessage(userID, conversationID, messageID string, role model.Role) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.events.PublishMessage(ctx, natsclient.MessageEvent{
		UserID:         userID,
		ConversationID: conversationID,
		MessageID:      messageID,
		Role:           string(role),
		OccurredAt:     time.Now().UTC(),
	})
}

// titleFrom derives a conversation title from the first user message.
func titleFrom(message string) string {
	runes := []rune(message)
	if len(runes) <= titleLimit {
		return message
	}
	return string(runes[:titleLimit]) + "…"
}
