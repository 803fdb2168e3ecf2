package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"charforge/models"

	"github.com/google/uuid"
)

// CreateConversation inserts a new conversation for the given user.
func (s *Store) CreateConversation(ctx context.Context, userID uuid.UUID, name string) (models.Conversation, error) {
	conv := models.Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (id, user_id, name, created_at) VALUES ($1, $2, $3, $4)",
		conv.ID, conv.UserID, conv.Name, conv.CreatedAt)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}
	return conv, nil
}

// GetConversation fetches a conversation owned by userID.
func (s *Store) GetConversation(ctx context.Context, id, userID uuid.UUID) (models.Conversation, error) {
	var conv models.Conversation
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, name, created_at FROM conversations WHERE id = $1 AND user_id = $2",
		id, userID).
		Scan(&conv.ID, &conv.UserID, &conv.Name, &conv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrNotFound
	}
	if err != nil {
		return models.Conversation{}, fmt.Errorf("select conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns the user's conversations, newest first.
func (s *Store) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, name, created_at FROM conversations WHERE user_id = $1 ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Name, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// AppendMessage appends one message to a conversation's log and returns it
// with the database-assigned id and timestamp. The serial id fixes the
// replay order once and for all.
func (s *Store) AppendMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, tool_call_id, tool_result)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		msg.ConversationID, msg.Role, msg.Content, msg.ToolCallID, msg.ToolResult).
		Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// ListMessages returns a conversation's full log in insertion order.
func (s *Store) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, tool_call_id, tool_result, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY id ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content,
			&msg.ToolCallID, &msg.ToolResult, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
