package nats

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// ToolUsedEvent is published when the agent invokes a tool.
type ToolUsedEvent struct {
	UserID         string    `json:"userId"`
	ConversationID string    `json:"conversationId"`
	Tool           string    `json:"tool"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// MessageEvent is published when a message is persisted to a conversation.
type MessageEvent struct {
	UserID         string    `json:"userId"`
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId"`
	Role           string    `json:"role"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// PublishToolUsed emits a tool usage event. Publishing is best effort:
// failures are logged and never surfaced to the caller. Safe on a nil client.
func (c *Client) PublishToolUsed(ctx context.Context, ev ToolUsedEvent) {
	c.publish(ctx, "assistant.tool.used", ev)
}

// PublishMessage emits a message persisted event. Best effort, nil-safe.
func (c *Client) PublishMessage(ctx context.Context, ev MessageEvent) {
	c.publish(ctx, "assistant.message.persisted", ev)
}

func (c *Client) publish(ctx context.Context, subject string, payload any) {
	if c == nil || c.js == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("failed to marshal event", zap.String("subject", subject), zap.Error(err))
		return
	}

	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		c.logger.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}
