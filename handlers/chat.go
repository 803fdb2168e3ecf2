package handlers

import (
	"context"
	"errors"
	"net/http"

	"charforge/models"
	"charforge/services"
	"charforge/store"
	"charforge/tools"
	"charforge/workflows"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ConversationStore is the read side of the conversation log used directly
// by the handlers; all writes go through the orchestrator and workflows.
type ConversationStore interface {
	ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	GetConversation(ctx context.Context, id, userID uuid.UUID) (models.Conversation, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
}

// TurnRunner is the orchestrator surface the HTTP layer needs.
type TurnRunner interface {
	RunTurn(ctx context.Context, input workflows.TurnInput) (models.TurnResponse, error)
	Decide(ctx context.Context, input workflows.DecisionInput) (models.TurnResponse, error)
}

// ChatHandler handles conversation and turn HTTP requests.
type ChatHandler struct {
	store     ConversationStore
	turns     TurnRunner
	dbosCtx   dbos.DBOSContext
	workflows *workflows.ConversationWorkflows
	logger    zerolog.Logger
}

func NewChatHandler(store ConversationStore, turns TurnRunner, dbosCtx dbos.DBOSContext, wf *workflows.ConversationWorkflows, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		store:     store,
		turns:     turns,
		dbosCtx:   dbosCtx,
		workflows: wf,
		logger:    logger.With().Str("component", "chat_handler").Logger(),
	}
}

type createConversationRequest struct {
	Name string `json:"name"`
}

// CreateConversation creates a conversation with its system prompt and
// greeting through a durable workflow.
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	user := currentUser(c)

	var req createConversationRequest
	_ = c.ShouldBindJSON(&req)

	handle, err := dbos.RunWorkflow(h.dbosCtx, h.workflows.CreateConversationWorkflow, workflows.CreateConversationInput{
		UserID: user.ID,
		Name:   req.Name,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to start CreateConversation workflow")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create conversation"})
		return
	}

	output, err := handle.GetResult()
	if err != nil {
		h.logger.Error().Err(err).Msg("CreateConversation workflow failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create conversation"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"conversation": output.Conversation,
		"messages":     output.Messages,
	})
}

// ListConversations lists the caller's conversations.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	user := currentUser(c)

	conversations, err := h.store.ListConversations(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list conversations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list conversations"})
		return
	}
	c.JSON(http.StatusOK, conversations)
}

// GetMessages returns a conversation's full log in replay order.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	user := currentUser(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID"})
		return
	}

	if _, err := h.store.GetConversation(c.Request.Context(), id, user.ID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	messages, err := h.store.ListMessages(c.Request.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get messages"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

// SendMessage is the main turn entrypoint: a new user message or a batch of
// client-executed tool results.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	user := currentUser(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID"})
		return
	}

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	output, err := h.turns.RunTurn(c.Request.Context(), workflows.TurnInput{
		ConversationID: id,
		Caller:         user,
		Message:        req.Message,
		ToolResults:    req.ToolResults,
	})
	if err != nil {
		h.respondTurnError(c, err)
		return
	}
	c.JSON(http.StatusOK, output)
}

// Confirm resolves a pending gated tool call.
func (h *ChatHandler) Confirm(c *gin.Context) {
	user := currentUser(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID"})
		return
	}

	var req models.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	output, err := h.turns.Decide(c.Request.Context(), workflows.DecisionInput{
		ConversationID: id,
		Caller:         user,
		ToolCallID:     req.ToolCallID,
		Approved:       *req.Approved,
		Reason:         req.Reason,
	})
	if err != nil {
		h.respondTurnError(c, err)
		return
	}
	c.JSON(http.StatusOK, output)
}

// ListTools returns the fixed tool catalog, mainly for the UI's
// confirmation dialog.
func (h *ChatHandler) ListTools(c *gin.Context) {
	c.JSON(http.StatusOK, tools.Catalog())
}

func (h *ChatHandler) respondTurnError(c *gin.Context, err error) {
	var upstream *services.UpstreamError
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
	case errors.Is(err, workflows.ErrEmptyTurn):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Provide a message or tool results"})
	case errors.Is(err, workflows.ErrConversationBusy),
		errors.Is(err, workflows.ErrConfirmationPending),
		errors.Is(err, workflows.ErrNoPendingConfirmation):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrTimeout),
		errors.Is(err, services.ErrMalformedResponse),
		errors.As(err, &upstream):
		// Protocol failures stay generic for the user; details go to the log.
		h.logger.Error().Err(err).Msg("model gateway failure")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Something went wrong talking to the assistant, try again"})
	default:
		h.logger.Error().Err(err).Msg("turn failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process message"})
	}
}
