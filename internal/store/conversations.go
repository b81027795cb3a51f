package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jobpilot/assistant-api/internal/model"
)

// CreateConversation creates a conversation for the user. Title may be
// empty (untitled).
func (s *Store) CreateConversation(ctx context.Context, userID, title string) (*model.Conversation, error) {
	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.UserID, nullString(conv.Title), formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	return conv, nil
}

// GetConversation returns the conversation if it belongs to the user.
func (s *Store) GetConversation(ctx context.Context, userID, id string) (*model.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	return scanConversation(row)
}

// ListConversations returns the user's conversations, most recently
// updated first.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM conversations
		 WHERE user_id = ? ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []model.Conversation
	for rows.Next() {
		var c model.Conversation
		var title sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.UserID, &title, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		c.Title = fromNull(title)
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversationWithMessages returns an owner-checked conversation and
// its messages ordered by creation time ascending.
func (s *Store) GetConversationWithMessages(ctx context.Context, userID, id string) (*model.ConversationWithMessages, error) {
	conv, err := s.GetConversation(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	msgs, err := s.Messages(ctx, id)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}

	return &model.ConversationWithMessages{Conversation: *conv, Messages: msgs}, nil
}

// AppendMessage appends one message and bumps the conversation's
// updated_at in the same transaction. Creation timestamps are forced
// strictly monotonic within a conversation so ordering by created_at is
// total.
func (s *Store) AppendMessage(ctx context.Context, conversationID string, role model.Role, content string) (*model.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var last sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM messages WHERE conversation_id = ?`, conversationID,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("read last timestamp: %w", err)
	}
	if last.Valid {
		if prev := parseTime(last.String); !now.After(prev) {
			now = prev.Add(time.Nanosecond)
		}
	}

	msg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC()), conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("bump conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return msg, nil
}

// Messages returns the ordered message list for a conversation.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at FROM messages
		 WHERE conversation_id = ? ORDER BY created_at ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		var role, createdAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		m.Role = model.Role(role)
		m.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// DeleteConversation deletes an owner-checked conversation and all of
// its messages.
func (s *Store) DeleteConversation(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	// Explicit cascade, in case a connection runs without the
	// foreign_keys pragma.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}

	return tx.Commit()
}

func scanConversation(row *sql.Row) (*model.Conversation, error) {
	var c model.Conversation
	var title sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.UserID, &title, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Title = fromNull(title)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}
