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

// CreateCharacter inserts a new draft character for the owner.
func (s *Store) CreateCharacter(ctx context.Context, ownerID uuid.UUID, name string) (models.Character, error) {
	ch := models.Character{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      name,
		Status:    models.CharacterStatusDraft,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO characters (id, owner_id, name, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ch.ID, ch.OwnerID, ch.Name, ch.Status, ch.CreatedAt, ch.UpdatedAt)
	if err != nil {
		return models.Character{}, fmt.Errorf("insert character: %w", err)
	}
	return ch, nil
}

// GetCharacter fetches a character owned by ownerID.
func (s *Store) GetCharacter(ctx context.Context, id, ownerID uuid.UUID) (models.Character, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, class, race,
		        strength, dexterity, constitution, intelligence, wisdom, charisma,
		        status, created_at, updated_at
		 FROM characters WHERE id = $1 AND owner_id = $2`,
		id, ownerID)
	return scanCharacter(row)
}

// ListCharacters returns the owner's characters, newest first.
func (s *Store) ListCharacters(ctx context.Context, ownerID uuid.UUID) ([]models.Character, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, class, race,
		        strength, dexterity, constitution, intelligence, wisdom, charisma,
		        status, created_at, updated_at
		 FROM characters WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	characters := []models.Character{}
	for rows.Next() {
		ch, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		characters = append(characters, ch)
	}
	return characters, rows.Err()
}

// UpdateCharacter applies a partial update and returns the new state. Every
// field is written in one statement; precondition checks happen in the tool
// layer before this is called, so there are no partial writes to roll back.
func (s *Store) UpdateCharacter(ctx context.Context, id, ownerID uuid.UUID, patch models.CharacterPatch) (models.Character, error) {
	current, err := s.GetCharacter(ctx, id, ownerID)
	if err != nil {
		return models.Character{}, err
	}

	if patch.Name != nil {
		current.Name = *patch.Name
	}
	if patch.Class != nil {
		current.Class = patch.Class
	}
	if patch.Race != nil {
		current.Race = patch.Race
	}
	if patch.Scores != nil {
		current.Scores = *patch.Scores
	}
	if patch.Status != nil {
		current.Status = *patch.Status
	}
	current.UpdatedAt = time.Now()

	res, err := s.db.ExecContext(ctx,
		`UPDATE characters
		 SET name = $1, class = $2, race = $3,
		     strength = $4, dexterity = $5, constitution = $6,
		     intelligence = $7, wisdom = $8, charisma = $9,
		     status = $10, updated_at = $11
		 WHERE id = $12 AND owner_id = $13`,
		current.Name, current.Class, current.Race,
		current.Scores.Strength, current.Scores.Dexterity, current.Scores.Constitution,
		current.Scores.Intelligence, current.Scores.Wisdom, current.Scores.Charisma,
		current.Status, current.UpdatedAt, id, ownerID)
	if err != nil {
		return models.Character{}, fmt.Errorf("update character: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.Character{}, ErrNotFound
	}
	return current, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharacter(row rowScanner) (models.Character, error) {
	var ch models.Character
	err := row.Scan(&ch.ID, &ch.OwnerID, &ch.Name, &ch.Class, &ch.Race,
		&ch.Scores.Strength, &ch.Scores.Dexterity, &ch.Scores.Constitution,
		&ch.Scores.Intelligence, &ch.Scores.Wisdom, &ch.Scores.Charisma,
		&ch.Status, &ch.CreatedAt, &ch.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Character{}, ErrNotFound
	}
	if err != nil {
		return models.Character{}, fmt.Errorf("scan character: %w", err)
	}
	return ch, nil
}
