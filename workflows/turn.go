package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"charforge/models"
	"charforge/services"
	"charforge/tools"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrConversationBusy means another turn currently holds the
	// conversation; the client should retry after it completes.
	ErrConversationBusy = errors.New("a turn is already running for this conversation")
	// ErrEmptyTurn means the request carried neither a user message nor tool
	// results.
	ErrEmptyTurn = errors.New("turn input is empty")
)

// MessageStore is the slice of the data layer the orchestrator needs. It is
// the sole component that writes to the conversation log.
type MessageStore interface {
	GetConversation(ctx context.Context, id, userID uuid.UUID) (models.Conversation, error)
	AppendMessage(ctx context.Context, msg models.Message) (models.Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
}

// ModelGateway abstracts the model endpoint for the orchestrator.
type ModelGateway interface {
	Send(ctx context.Context, messages []models.Message, tools []models.ToolDefinition) (services.Reply, error)
}

// ToolExecutor abstracts tool execution.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any, caller models.User, callID string) (models.ToolOutcome, error)
}

// TurnInput starts a turn: either a fresh user message or a batch of
// client-executed tool results continuing a previous pause, never both.
type TurnInput struct {
	ConversationID uuid.UUID
	Caller         models.User
	Message        string
	ToolResults    []models.ToolOutcome
}

// DecisionInput resolves a pending gated tool confirmation.
type DecisionInput struct {
	ConversationID uuid.UUID
	Caller         models.User
	ToolCallID     string
	Approved       bool
	Reason         string
}

// Orchestrator drives one user turn end to end: persist input, ask the model
// for its next action, execute (or gate) a requested tool, feed the result
// back, and repeat until the model answers in plain text. Each step is
// awaited before the next; within a conversation the orchestrator is the
// only writer for the duration of a turn.
type Orchestrator struct {
	store         MessageStore
	gateway       ModelGateway
	executor      ToolExecutor
	gate          *ConfirmationGate
	locks         *conversationLocks
	catalog       []models.ToolDefinition
	maxIterations int
	logger        zerolog.Logger
}

func NewOrchestrator(store MessageStore, gateway ModelGateway, executor ToolExecutor, gate *ConfirmationGate, maxIterations int, logger zerolog.Logger) *Orchestrator {
	if maxIterations <= 0 {
		maxIterations = 8
	}
	return &Orchestrator{
		store:         store,
		gateway:       gateway,
		executor:      executor,
		gate:          gate,
		locks:         newConversationLocks(),
		catalog:       tools.Catalog(),
		maxIterations: maxIterations,
		logger:        logger.With().Str("component", "orchestrator").Logger(),
	}
}

// RunTurn executes one turn. It returns with a PendingCall when the model
// requested a gated tool; the turn then resumes through Decide.
func (o *Orchestrator) RunTurn(ctx context.Context, input TurnInput) (models.TurnResponse, error) {
	if input.Message == "" && len(input.ToolResults) == 0 {
		return models.TurnResponse{}, ErrEmptyTurn
	}

	conv, err := o.store.GetConversation(ctx, input.ConversationID, input.Caller.ID)
	if err != nil {
		return models.TurnResponse{}, err
	}

	if !o.locks.TryAcquire(conv.ID) {
		return models.TurnResponse{}, ErrConversationBusy
	}
	defer o.locks.Release(conv.ID)

	if o.gate.Outstanding(conv.ID) {
		return models.TurnResponse{}, ErrConfirmationPending
	}

	var userMessage *models.Message
	if len(input.ToolResults) > 0 {
		// A pure continuation: results are appended as context, nothing is
		// re-announced as user input.
		for _, outcome := range input.ToolResults {
			if _, err := o.appendToolResult(ctx, conv.ID, outcome); err != nil {
				return models.TurnResponse{}, err
			}
		}
	} else {
		msg, err := o.store.AppendMessage(ctx, models.Message{
			ConversationID: conv.ID,
			Role:           models.RoleUser,
			Content:        input.Message,
		})
		if err != nil {
			return models.TurnResponse{}, err
		}
		userMessage = &msg
	}

	return o.runLoop(ctx, conv, input.Caller, userMessage)
}

// Decide resumes a paused turn. Approval executes the suspended tool and
// re-enters the loop; denial short-circuits with a synthetic system message
// and never reaches the executor.
func (o *Orchestrator) Decide(ctx context.Context, input DecisionInput) (models.TurnResponse, error) {
	conv, err := o.store.GetConversation(ctx, input.ConversationID, input.Caller.ID)
	if err != nil {
		return models.TurnResponse{}, err
	}

	if !o.locks.TryAcquire(conv.ID) {
		return models.TurnResponse{}, ErrConversationBusy
	}
	defer o.locks.Release(conv.ID)

	pending, err := o.gate.Take(conv.ID, input.ToolCallID)
	if err != nil {
		return models.TurnResponse{}, err
	}

	if !input.Approved {
		reason := input.Reason
		if reason == "" {
			reason = "no reason given"
		}
		// The denial is recorded as the call's tool result so the invocation
		// never dangles: the wire protocol requires every replayed tool call
		// to be answered.
		denial, err := o.appendToolResult(ctx, conv.ID, models.ToolOutcome{
			Success:    false,
			ToolCallID: pending.Invocation.ID,
			Message: fmt.Sprintf("The player denied the request to run %s (%s). Do not retry it; ask the player how to proceed instead.",
				pending.Invocation.Name, reason),
		})
		if err != nil {
			return models.TurnResponse{}, err
		}
		return models.TurnResponse{AIMessage: &denial}, nil
	}

	outcome, err := o.executor.Execute(ctx, pending.Invocation.Name, pending.Invocation.Arguments, input.Caller, pending.Invocation.ID)
	if err != nil {
		return models.TurnResponse{}, err
	}
	if _, err := o.appendToolResult(ctx, conv.ID, outcome); err != nil {
		return models.TurnResponse{}, err
	}

	return o.runLoop(ctx, conv, input.Caller, nil)
}

// runLoop is the machine-to-machine phase: model, tool, model, tool, until a
// plain-text answer, a gated pause, or the iteration budget.
func (o *Orchestrator) runLoop(ctx context.Context, conv models.Conversation, caller models.User, userMessage *models.Message) (models.TurnResponse, error) {
	for iteration := 0; iteration < o.maxIterations; iteration++ {
		// The append of the previous step has been acknowledged, so the
		// replayed history is complete by construction.
		history, err := o.store.ListMessages(ctx, conv.ID)
		if err != nil {
			return models.TurnResponse{}, err
		}

		reply, err := o.gateway.Send(ctx, history, o.catalog)
		if err != nil {
			return models.TurnResponse{}, err
		}

		if reply.ToolCall == nil {
			aiMessage, err := o.store.AppendMessage(ctx, models.Message{
				ConversationID: conv.ID,
				Role:           models.RoleAssistant,
				Content:        reply.Text,
			})
			if err != nil {
				return models.TurnResponse{}, err
			}
			return models.TurnResponse{UserMessage: userMessage, AIMessage: &aiMessage}, nil
		}

		invocation := *reply.ToolCall
		if _, err := o.appendToolCall(ctx, conv.ID, invocation); err != nil {
			return models.TurnResponse{}, err
		}

		if tools.Gated(invocation.Name) {
			if err := o.gate.Register(conv.ID, invocation); err != nil {
				return models.TurnResponse{}, err
			}
			o.logger.Info().
				Str("conversation", conv.ID.String()).
				Str("tool", invocation.Name).
				Msg("turn paused awaiting confirmation")
			return models.TurnResponse{UserMessage: userMessage, PendingCall: &invocation}, nil
		}

		outcome, err := o.executor.Execute(ctx, invocation.Name, invocation.Arguments, caller, invocation.ID)
		if err != nil {
			return models.TurnResponse{}, err
		}
		if _, err := o.appendToolResult(ctx, conv.ID, outcome); err != nil {
			return models.TurnResponse{}, err
		}
		// Loop with the result as fresh context and the user text cleared.
	}

	o.logger.Warn().
		Str("conversation", conv.ID.String()).
		Int("iterations", o.maxIterations).
		Msg("turn hit the iteration budget")
	notice, err := o.store.AppendMessage(ctx, models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        "I had to stop before finishing; I made too many tool calls in a row. Tell me how you'd like to continue.",
	})
	if err != nil {
		return models.TurnResponse{}, err
	}
	return models.TurnResponse{UserMessage: userMessage, AIMessage: &notice}, nil
}

// appendToolCall records the invocation for audit and replay: an assistant
// message whose content is the serialized call.
func (o *Orchestrator) appendToolCall(ctx context.Context, conversationID uuid.UUID, inv models.ToolInvocation) (models.Message, error) {
	body, err := json.Marshal(inv)
	if err != nil {
		return models.Message{}, fmt.Errorf("marshal tool call: %w", err)
	}
	callID := inv.ID
	return o.store.AppendMessage(ctx, models.Message{
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        string(body),
		ToolCallID:     &callID,
	})
}

// appendToolResult records an outcome as a system message carrying the
// result payload, correlated to its invocation by tool call id.
func (o *Orchestrator) appendToolResult(ctx context.Context, conversationID uuid.UUID, outcome models.ToolOutcome) (models.Message, error) {
	if outcome.ToolCallID == "" {
		outcome.ToolCallID = uuid.NewString()
	}
	payload, err := json.Marshal(outcome)
	if err != nil {
		return models.Message{}, fmt.Errorf("marshal tool result: %w", err)
	}
	callID := outcome.ToolCallID
	result := string(payload)
	return o.store.AppendMessage(ctx, models.Message{
		ConversationID: conversationID,
		Role:           models.RoleSystem,
		Content:        outcome.Message,
		ToolCallID:     &callID,
		ToolResult:     &result,
	})
}
