// Package model defines data structures for the assistant API.
package model

import (
	"time"
)

// Conversation represents an assistant conversation thread.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationWithMessages is a conversation and its ordered messages.
type ConversationWithMessages struct {
	Conversation
	Messages []Message `json:"messages"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}
