package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"charforge/models"
	"charforge/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrUnknownTool means the model requested a tool that is not in the
// catalog. This is a contract error, never a soft ToolOutcome: it indicates
// a catalog/schema mismatch rather than something the player can correct.
var ErrUnknownTool = errors.New("unknown tool")

// CharacterStore is the slice of the data layer the executor needs.
type CharacterStore interface {
	CreateCharacter(ctx context.Context, ownerID uuid.UUID, name string) (models.Character, error)
	GetCharacter(ctx context.Context, id, ownerID uuid.UUID) (models.Character, error)
	UpdateCharacter(ctx context.Context, id, ownerID uuid.UUID, patch models.CharacterPatch) (models.Character, error)
	ListCharacters(ctx context.Context, ownerID uuid.UUID) ([]models.Character, error)
	GetClassByName(ctx context.Context, name string) (models.Class, error)
	GetRaceByName(ctx context.Context, name string) (models.Race, error)
}

// Searcher is the semantic search collaborator.
type Searcher interface {
	Closest(ctx context.Context, kind, query string, limit int) ([]store.CatalogMatch, error)
}

// Notifier is the submission notification collaborator.
type Notifier interface {
	Notify(ctx context.Context, ch models.Character, submitterEmail string) error
}

// Executor runs tools against the collaborator services. It is stateless per
// call and never touches the conversation log; persistence ordering stays
// with the orchestrator.
type Executor struct {
	store    CharacterStore
	search   Searcher
	notifier Notifier
	logger   zerolog.Logger
}

func NewExecutor(cs CharacterStore, search Searcher, notifier Notifier, logger zerolog.Logger) *Executor {
	return &Executor{
		store:    cs,
		search:   search,
		notifier: notifier,
		logger:   logger.With().Str("component", "executor").Logger(),
	}
}

// Execute dispatches a tool by name for the given caller. Soft failures
// (missing argument, missing precondition, entity not found) come back as
// ToolOutcome{Success: false} with guidance the model can act on; the error
// return is reserved for unknown tools and infrastructure failures.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any, caller models.User, callID string) (models.ToolOutcome, error) {
	kind, ok := KindOf(name)
	if !ok {
		return models.ToolOutcome{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	e.logger.Debug().Str("tool", name).Str("call_id", callID).Msg("executing tool")

	var outcome models.ToolOutcome
	var err error
	switch kind {
	case KindCreateCharacter:
		outcome, err = e.createCharacter(ctx, args, caller)
	case KindGetCharacter:
		outcome, err = e.getCharacter(ctx, args, caller)
	case KindListCharacters:
		outcome, err = e.listCharacters(ctx, caller)
	case KindFindClasses:
		outcome, err = e.findCatalogMatches(ctx, args, "class")
	case KindFindRaces:
		outcome, err = e.findCatalogMatches(ctx, args, "race")
	case KindRollAbilityScores:
		outcome, err = e.rollAbilityScores()
	case KindAssignClass:
		outcome, err = e.assignClass(ctx, args, caller)
	case KindAssignRace:
		outcome, err = e.assignRace(ctx, args, caller)
	case KindAssignAbilityScores:
		outcome, err = e.assignAbilityScores(ctx, args, caller)
	case KindSubmitCharacter:
		outcome, err = e.submitCharacter(ctx, args, caller)
	case KindInvalid:
		return models.ToolOutcome{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if err != nil {
		return models.ToolOutcome{}, err
	}
	outcome.ToolCallID = callID
	return outcome, nil
}

func softFail(format string, a ...any) models.ToolOutcome {
	return models.ToolOutcome{Success: false, Message: fmt.Sprintf(format, a...)}
}

func succeed(message string, data map[string]any) models.ToolOutcome {
	return models.ToolOutcome{Success: true, Message: message, Data: data}
}

func (e *Executor) createCharacter(ctx context.Context, args map[string]any, caller models.User) (models.ToolOutcome, error) {
	name, ok := stringArg(args, "name")
	if !ok {
		return softFail("The 'name' argument is required to create a character."), nil
	}
	ch, err := e.store.CreateCharacter(ctx, caller.ID, name)
	if err != nil {
		return models.ToolOutcome{}, err
	}
	return succeed(fmt.Sprintf("Created draft character %q.", ch.Name),
		map[string]any{"character": ch}), nil
}

func (e *Executor) getCharacter(ctx context.Context, args map[string]any, caller models.User) (models.ToolOutcome, error) {
	ch, outcome, err := e.loadCharacter(ctx, args, caller)
	if err != nil || !outcome.Success {
		return outcome, err
	}
	return succeed(fmt.Sprintf("Character %q.", ch.Name),
		map[string]any{"character": ch}), nil
}

func (e *Executor) listCharacters(ctx context.Context, caller models.User) (models.ToolOutcome, error) {
	characters, err := e.store.ListCharacters(ctx, caller.ID)
	if err != nil {
		return models.ToolOutcome{}, err
	}
	return succeed(fmt.Sprintf("The player has %d character(s).", len(characters)),
		map[string]any{"characters": characters}), nil
}

func (e *Executor) findCatalogMatches(ctx context.Context, args map[string]any, kind string) (models.ToolOutcome, error) {
	description, ok := stringArg(args, "description")
	if !ok {
		return softFail("The 'description' argument is required."), nil
	}
	limit, _ := intArg(args, "limit")

	matches, err := e.search.Closest(ctx, kind, description, limit)
	if err != nil {
		return models.ToolOutcome{}, fmt.Errorf("search %s catalog: %w", kind, err)
	}
	if len(matches) == 0 {
		return succeed(fmt.Sprintf("No %s in the catalog matched that description.", kind),
			map[string]any{"matches": matches}), nil
	}
	return succeed(fmt.Sprintf("Found %d matching %s option(s), closest first.", len(matches), kind),
		map[string]any{"matches": matches}), nil
}

func (e *Executor) rollAbilityScores() (models.ToolOutcome, error) {
	scores := make([]int, 6)
	for i := range scores {
		scores[i] = roll4d6DropLowest()
	}
	return succeed("Rolled six ability scores (4d6 drop lowest).",
		map[string]any{"scores": scores}), nil
}

func roll4d6DropLowest() int {
	dice := []int{
		rand.IntN(6) + 1,
		rand.IntN(6) + 1,
		rand.IntN(6) + 1,
		rand.IntN(6) + 1,
	}
	sort.Ints(dice)
	return dice[1] + dice[2] + dice[3]
}

func (e *Executor) assignClass(ctx context.Context, args map[string]any, caller models.User) (models.ToolOutcome, error) {
	className, ok := stringArg(args, "class_name")
	if !ok {
		return softFail("The 'class_name' argument is required."), nil
	}
	ch, outcome, err := e.loadCharacter(ctx, args, caller)
	if err != nil || !outcome.Success {
		return outcome, err
	}
	if ch.Status == models.CharacterStatusSubmitted {
		return softFail("Character %q has already been submitted and can no longer be changed.", ch.Name), nil
	}

	class, err := e.store.GetClassByName(ctx, className)
	if errors.Is(err, store.ErrNotFound) {
		return softFail("There is no class named %q in the catalog. Use %s to explore the options.",
			className, NameFindClasses), nil
	}
	if err != nil {
		return models.ToolOutcome{}, err
	}

	updated, err := e.store.UpdateCharacter(ctx, ch.ID, caller.ID, models.CharacterPatch{Class: &class.Name})
	if err != nil {
		return models.ToolOutcome{}, err
	}
	return succeed(fmt.Sprintf("Assigned class %q to %q.", class.Name, updated.Name),
		map[string]any{"character": updated}), nil
}

func (e *Executor) assignRace(ctx context.Context, args map[string]any, caller models.User) (models.ToolOutcome, error) {
	raceName, ok := stringArg(args, "race_name")
	if !ok {
		return softFail("The 'race_name' argument is required."), nil
	}
	ch, outcome, err := e.loadCharacter(ctx, args, caller)
	if err != nil || !outcome.Success {
		return outcome, err
	}
	if ch.Status == models.CharacterStatusSubmitted {
		return softFail("Character %q has already been submitted and can no longer be changed.", ch.Name), nil
	}
	if ch.Class == nil {
		return softFail("Character %q has no class yet. Assign a class before choosing a race.", ch.Name), nil
	}

	race, err := e.store.GetRaceByName(ctx, raceName)
	if errors.Is(err, store.ErrNotFound) {
		return softFail("There is no race named %q in the catalog. Use %s to explore the options.",
			raceName, NameFindRaces), nil
	}
	if err != nil {
		return models.ToolOutcome{}, err
	}

	updated, err := e.store.UpdateCharacter(ctx, ch.ID, caller.ID, models.CharacterPatch{Race: &race.Name})
	if err != nil {
		return models.ToolOutcome{}, err
	}
	return succeed(fmt.Sprintf("Assigned race %q to %q.", race.Name, updated.Name),
		map[string]any{"character": updated}), nil
}

var scoreArgNames = []string{"strength", "dexterity", "constitution", "intelligence", "wisdom", "charisma"}

func (e *Executor) assignAbilityScores(ctx context.Context, args map[string]any, caller models.User) (models.ToolOutcome, error) {
	ch, outcome, err := e.loadCharacter(ctx, args, caller)
	if err != nil || !outcome.Success {
		return outcome, err
	}
	if ch.Status == models.CharacterStatusSubmitted {
		return softFail("Character %q has already been submitted and can no longer be changed.", ch.Name), nil
	}
	if ch.Class == nil || ch.Race == nil {
		return softFail("Character %q needs both a class and a race before ability scores can be assigned.", ch.Name), nil
	}

	values := make(map[string]int, len(scoreArgNames))
	for _, name := range scoreArgNames {
		v, ok := intArg(args, name)
		if !ok {
			return softFail("The '%s' argument is required and must be an integer.", name), nil
		}
		if v < 3 || v > 18 {
			return softFail("Ability scores must be between 3 and 18; '%s' was %d.", name, v), nil
		}
		values[name] = v
	}

	scores := models.AbilityScores{
		Strength:     intPtr(values["strength"]),
		Dexterity:    intPtr(values["dexterity"]),
		Constitution: intPtr(values["constitution"]),
		Intelligence: intPtr(values["intelligence"]),
		Wisdom:       intPtr(values["wisdom"]),
		Charisma:     intPtr(values["charisma"]),
	}
	updated, err := e.store.UpdateCharacter(ctx, ch.ID, caller.ID, models.CharacterPatch{Scores: &scores})
	if err != nil {
		return models.ToolOutcome{}, err
	}
	return succeed(fmt.Sprintf("Assigned ability scores to %q.", updated.Name),
		map[string]any{"character": updated}), nil
}

func (e *Executor) submitCharacter(ctx context.Context, args map[string]any, caller models.User) (models.ToolOutcome, error) {
	ch, outcome, err := e.loadCharacter(ctx, args, caller)
	if err != nil || !outcome.Success {
		return outcome, err
	}
	if ch.Status == models.CharacterStatusSubmitted {
		return softFail("Character %q has already been submitted.", ch.Name), nil
	}
	if ch.Class == nil || ch.Race == nil || !ch.Scores.Complete() {
		return softFail("Character %q is incomplete: it needs a class, a race and all six ability scores before submission.", ch.Name), nil
	}

	if err := e.notifier.Notify(ctx, ch, caller.Email); err != nil {
		e.logger.Warn().Err(err).Str("character", ch.ID.String()).Msg("submission notification failed")
		return softFail("The submission notification could not be delivered: %v. The character is still a draft; try again later.", err), nil
	}

	status := models.CharacterStatusSubmitted
	updated, err := e.store.UpdateCharacter(ctx, ch.ID, caller.ID, models.CharacterPatch{Status: &status})
	if err != nil {
		return models.ToolOutcome{}, err
	}
	return succeed(fmt.Sprintf("Character %q has been submitted to the game masters for approval.", updated.Name),
		map[string]any{"character": updated}), nil
}

// loadCharacter resolves the character_id argument and ownership. The
// returned outcome has Success=true when the character was loaded; otherwise
// it is a ready-made soft failure.
func (e *Executor) loadCharacter(ctx context.Context, args map[string]any, caller models.User) (models.Character, models.ToolOutcome, error) {
	raw, ok := stringArg(args, "character_id")
	if !ok {
		return models.Character{}, softFail("The 'character_id' argument is required."), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return models.Character{}, softFail("%q is not a valid character id.", raw), nil
	}
	ch, err := e.store.GetCharacter(ctx, id, caller.ID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Character{}, softFail("No character with id %s belongs to this player.", id), nil
	}
	if err != nil {
		return models.Character{}, models.ToolOutcome{}, err
	}
	return ch, models.ToolOutcome{Success: true}, nil
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// intArg accepts the numeric shapes JSON decoding can produce.
func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func intPtr(v int) *int { return &v }
