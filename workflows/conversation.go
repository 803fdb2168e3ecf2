package workflows

import (
	"context"

	"charforge/models"
	"charforge/store"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/google/uuid"
)

// systemPrompt is the single instruction message inserted at conversation
// creation. Exactly one system prompt exists per conversation, ever.
const systemPrompt = `You are the game master's assistant for a tabletop character creation service.
Help the player build a character step by step: explore classes and races with the search tools,
roll ability scores, and assign choices with the assignment tools. Assignments and submission
require the player's explicit confirmation; if the player denies a request, do not retry it.
Assign a class before a race, and both before ability scores. When a tool reports a failure,
explain it to the player in plain language and suggest what to do next. Keep replies short and
in character as a friendly guide.`

// greetingMessage opens every new conversation.
const greetingMessage = `Well met, adventurer! I'm here to help you forge a new character. ` +
	`Tell me what kind of hero you have in mind, and we'll find a fitting class to start with.`

// ConversationWorkflows holds the durable DBOS workflows around conversation
// setup. Creation is three ordered writes (conversation, system prompt,
// greeting); running them as durable steps means a crash mid-way resumes
// instead of leaving a conversation without its system prompt.
type ConversationWorkflows struct {
	store *store.Store
}

func NewConversationWorkflows(s *store.Store) *ConversationWorkflows {
	return &ConversationWorkflows{store: s}
}

// CreateConversationInput names the owner of the new conversation.
type CreateConversationInput struct {
	UserID uuid.UUID
	Name   string
}

// CreateConversationOutput carries the conversation and its seed messages.
type CreateConversationOutput struct {
	Conversation models.Conversation
	Messages     []models.Message
}

// CreateConversationWorkflow creates a conversation with its system prompt
// and canned greeting as three durable steps.
func (w *ConversationWorkflows) CreateConversationWorkflow(ctx dbos.DBOSContext, input CreateConversationInput) (CreateConversationOutput, error) {
	var output CreateConversationOutput

	name := input.Name
	if name == "" {
		name = "New character"
	}

	conv, err := dbos.RunAsStep(ctx, func(stepCtx context.Context) (models.Conversation, error) {
		return w.store.CreateConversation(stepCtx, input.UserID, name)
	})
	if err != nil {
		return output, err
	}
	output.Conversation = conv

	system, err := dbos.RunAsStep(ctx, func(stepCtx context.Context) (models.Message, error) {
		return w.store.AppendMessage(stepCtx, models.Message{
			ConversationID: conv.ID,
			Role:           models.RoleSystem,
			Content:        systemPrompt,
		})
	})
	if err != nil {
		return output, err
	}

	greeting, err := dbos.RunAsStep(ctx, func(stepCtx context.Context) (models.Message, error) {
		return w.store.AppendMessage(stepCtx, models.Message{
			ConversationID: conv.ID,
			Role:           models.RoleAssistant,
			Content:        greetingMessage,
		})
	})
	if err != nil {
		return output, err
	}

	output.Messages = []models.Message{system, greeting}
	return output, nil
}
