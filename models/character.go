package models

import (
	"time"

	"github.com/google/uuid"
)

// Character statuses. A draft becomes submitted when the player sends it to
// the game masters for approval; approval itself happens out of band.
const (
	CharacterStatusDraft     = "draft"
	CharacterStatusSubmitted = "submitted"
)

// AbilityScores are the six classic scores. Pointers distinguish "not yet
// assigned" from a real value so the assistant can see what is missing.
type AbilityScores struct {
	Strength     *int `json:"strength,omitempty"`
	Dexterity    *int `json:"dexterity,omitempty"`
	Constitution *int `json:"constitution,omitempty"`
	Intelligence *int `json:"intelligence,omitempty"`
	Wisdom       *int `json:"wisdom,omitempty"`
	Charisma     *int `json:"charisma,omitempty"`
}

// Complete reports whether every score has been assigned.
func (a AbilityScores) Complete() bool {
	return a.Strength != nil && a.Dexterity != nil && a.Constitution != nil &&
		a.Intelligence != nil && a.Wisdom != nil && a.Charisma != nil
}

// Character is a player character under construction.
type Character struct {
	ID        uuid.UUID     `json:"id"`
	OwnerID   uuid.UUID     `json:"owner_id"`
	Name      string        `json:"name"`
	Class     *string       `json:"class,omitempty"`
	Race      *string       `json:"race,omitempty"`
	Scores    AbilityScores `json:"scores"`
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// CharacterPatch is a partial update; nil fields are left untouched.
type CharacterPatch struct {
	Name   *string
	Class  *string
	Race   *string
	Scores *AbilityScores
	Status *string
}

// Class is a playable class from the game's catalog.
type Class struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// Race is a playable race from the game's catalog.
type Race struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// CreateCharacterRequest is the body of POST /api/characters.
type CreateCharacterRequest struct {
	Name string `json:"name" binding:"required"`
}
