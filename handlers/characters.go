package handlers

import (
	"context"
	"errors"
	"net/http"

	"charforge/models"
	"charforge/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CharacterStore is the data access surface for the character endpoints.
type CharacterStore interface {
	CreateCharacter(ctx context.Context, ownerID uuid.UUID, name string) (models.Character, error)
	GetCharacter(ctx context.Context, id, ownerID uuid.UUID) (models.Character, error)
	ListCharacters(ctx context.Context, ownerID uuid.UUID) ([]models.Character, error)
}

// CharacterHandler serves the thin character CRUD endpoints. Mutations
// beyond creation go through the conversation tools so that the
// precondition rules apply uniformly.
type CharacterHandler struct {
	store  CharacterStore
	logger zerolog.Logger
}

func NewCharacterHandler(store CharacterStore, logger zerolog.Logger) *CharacterHandler {
	return &CharacterHandler{
		store:  store,
		logger: logger.With().Str("component", "character_handler").Logger(),
	}
}

// CreateCharacter creates a new draft character.
func (h *CharacterHandler) CreateCharacter(c *gin.Context) {
	user := currentUser(c)

	var req models.CreateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ch, err := h.store.CreateCharacter(c.Request.Context(), user.ID, req.Name)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create character")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create character"})
		return
	}
	c.JSON(http.StatusCreated, ch)
}

// GetCharacter fetches one of the caller's characters.
func (h *CharacterHandler) GetCharacter(c *gin.Context) {
	user := currentUser(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid character ID"})
		return
	}

	ch, err := h.store.GetCharacter(c.Request.Context(), id, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Character not found"})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get character")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get character"})
		return
	}
	c.JSON(http.StatusOK, ch)
}

// ListCharacters lists the caller's characters.
func (h *CharacterHandler) ListCharacters(c *gin.Context) {
	user := currentUser(c)

	characters, err := h.store.ListCharacters(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list characters")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list characters"})
		return
	}
	c.JSON(http.StatusOK, characters)
}
