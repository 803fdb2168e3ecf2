// Package tools defines the fixed tool catalog the model may invoke and the
// executor that runs them. Dispatch is a closed enum with an exhaustive
// switch, so adding a tool is a compile-time-checked change.
package tools

import "charforge/models"

// Kind enumerates every tool. The zero value is invalid on purpose.
type Kind int

const (
	KindInvalid Kind = iota
	KindCreateCharacter
	KindGetCharacter
	KindListCharacters
	KindFindClasses
	KindFindRaces
	KindRollAbilityScores
	KindAssignClass
	KindAssignRace
	KindAssignAbilityScores
	KindSubmitCharacter
)

// Tool names as the model sees them.
const (
	NameCreateCharacter     = "create_character"
	NameGetCharacter        = "get_character"
	NameListCharacters      = "list_characters"
	NameFindClasses         = "get_closest_classes_to_description"
	NameFindRaces           = "get_closest_races_to_description"
	NameRollAbilityScores   = "roll_ability_scores"
	NameAssignClass         = "assign_class"
	NameAssignRace          = "assign_race"
	NameAssignAbilityScores = "assign_ability_scores"
	NameSubmitCharacter     = "submit_character"
)

// KindOf maps a tool name to its kind. ok is false for unknown names, which
// the executor treats as a hard contract error, not a soft tool failure.
func KindOf(name string) (Kind, bool) {
	switch name {
	case NameCreateCharacter:
		return KindCreateCharacter, true
	case NameGetCharacter:
		return KindGetCharacter, true
	case NameListCharacters:
		return KindListCharacters, true
	case NameFindClasses:
		return KindFindClasses, true
	case NameFindRaces:
		return KindFindRaces, true
	case NameRollAbilityScores:
		return KindRollAbilityScores, true
	case NameAssignClass:
		return KindAssignClass, true
	case NameAssignRace:
		return KindAssignRace, true
	case NameAssignAbilityScores:
		return KindAssignAbilityScores, true
	case NameSubmitCharacter:
		return KindSubmitCharacter, true
	default:
		return KindInvalid, false
	}
}

// Gated reports whether a tool mutates character state and therefore needs
// explicit human confirmation before execution. The set is fixed:
// exploratory tools (search, dice) never block on a human.
func Gated(name string) bool {
	switch name {
	case NameAssignClass, NameAssignRace, NameAssignAbilityScores, NameSubmitCharacter:
		return true
	default:
		return false
	}
}

func characterIDParam() models.ToolParameter {
	return models.ToolParameter{
		Type:        "string",
		Description: "UUID of the character",
		Required:    true,
	}
}

func scoreParam(name string) models.ToolParameter {
	return models.ToolParameter{
		Type:        "integer",
		Description: "Value for " + name + " (3-18)",
		Required:    true,
	}
}

// Catalog returns the full fixed tool catalog. Every call returns a fresh,
// structurally identical copy; nothing filters or mutates it per user.
func Catalog() []models.ToolDefinition {
	return []models.ToolDefinition{
		{
			Name:        NameCreateCharacter,
			Description: "Create a new draft character with the given name.",
			Parameters: map[string]models.ToolParameter{
				"name": {Type: "string", Description: "The character's name", Required: true},
			},
		},
		{
			Name:        NameGetCharacter,
			Description: "Fetch the current state of one of the player's characters.",
			Parameters: map[string]models.ToolParameter{
				"character_id": characterIDParam(),
			},
		},
		{
			Name:        NameListCharacters,
			Description: "List all of the player's characters.",
			Parameters:  map[string]models.ToolParameter{},
		},
		{
			Name:        NameFindClasses,
			Description: "Find the classes that best match a free-text description of how the player wants to play.",
			Parameters: map[string]models.ToolParameter{
				"description": {Type: "string", Description: "Desired play style or fantasy", Required: true},
				"limit":       {Type: "integer", Description: "Maximum number of matches (default 3)"},
			},
		},
		{
			Name:        NameFindRaces,
			Description: "Find the races that best match a free-text description of the character concept.",
			Parameters: map[string]models.ToolParameter{
				"description": {Type: "string", Description: "Desired look, origin or temperament", Required: true},
				"limit":       {Type: "integer", Description: "Maximum number of matches (default 3)"},
			},
		},
		{
			Name:        NameRollAbilityScores,
			Description: "Roll a fresh set of six ability scores (4d6, drop the lowest die).",
			Parameters:  map[string]models.ToolParameter{},
		},
		{
			Name:                 NameAssignClass,
			Description:          "Assign a class to a character. Requires player confirmation.",
			RequiresConfirmation: true,
			Parameters: map[string]models.ToolParameter{
				"character_id": characterIDParam(),
				"class_name":   {Type: "string", Description: "Name of a class from the catalog", Required: true},
			},
		},
		{
			Name:                 NameAssignRace,
			Description:          "Assign a race to a character. The character must already have a class. Requires player confirmation.",
			RequiresConfirmation: true,
			Parameters: map[string]models.ToolParameter{
				"character_id": characterIDParam(),
				"race_name":    {Type: "string", Description: "Name of a race from the catalog", Required: true},
			},
		},
		{
			Name:                 NameAssignAbilityScores,
			Description:          "Assign all six ability scores to a character. The character must already have a class and a race. Requires player confirmation.",
			RequiresConfirmation: true,
			Parameters: map[string]models.ToolParameter{
				"character_id": characterIDParam(),
				"strength":     scoreParam("strength"),
				"dexterity":    scoreParam("dexterity"),
				"constitution": scoreParam("constitution"),
				"intelligence": scoreParam("intelligence"),
				"wisdom":       scoreParam("wisdom"),
				"charisma":     scoreParam("charisma"),
			},
		},
		{
			Name:                 NameSubmitCharacter,
			Description:          "Submit a completed character to the game masters for approval. Requires player confirmation.",
			RequiresConfirmation: true,
			Parameters: map[string]models.ToolParameter{
				"character_id": characterIDParam(),
			},
		},
	}
}
