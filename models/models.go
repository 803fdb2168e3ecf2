package models

import (
	"time"

	"github.com/google/uuid"
)

// Message roles. These are the only roles ever stored; tool traffic is
// encoded on top of them via ToolCallID/ToolResult (see store package).
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is a chat session owned by a single user.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one entry in a conversation's append-only log. Messages are
// immutable once created; insertion order (the serial ID) is the
// authoritative context order replayed to the model.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	// ToolCallID correlates a tool invocation record with its result record.
	ToolCallID *string `json:"tool_call_id,omitempty"`
	// ToolResult holds the JSON-encoded ToolOutcome for result records.
	ToolResult *string   `json:"tool_result,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// User is a caller resolved from the authentication header.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// SendMessageRequest is the body of the main turn entrypoint. Either a new
// user message or a batch of client-executed tool results, never both.
type SendMessageRequest struct {
	Message     string        `json:"message"`
	ToolResults []ToolOutcome `json:"tool_results,omitempty"`
}

// ConfirmRequest resolves a pending tool confirmation.
type ConfirmRequest struct {
	ToolCallID string `json:"tool_call_id" binding:"required"`
	Approved   *bool  `json:"approved" binding:"required"`
	Reason     string `json:"reason"`
}

// TurnResponse is returned by the turn and confirm endpoints. PendingCall is
// set when the turn paused on a gated tool awaiting confirmation.
type TurnResponse struct {
	UserMessage *Message        `json:"user_message,omitempty"`
	AIMessage   *Message        `json:"ai_message,omitempty"`
	PendingCall *ToolInvocation `json:"pending_call,omitempty"`
}
