package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"charforge/models"
)

// CatalogMatch is a class or race ranked by embedding distance, closest
// first. Distance is the raw pgvector L2 distance.
type CatalogMatch struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Distance    float64 `json:"distance"`
}

// GetClassByName looks a class up by exact name, case-insensitively.
func (s *Store) GetClassByName(ctx context.Context, name string) (models.Class, error) {
	var c models.Class
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description FROM classes WHERE lower(name) = lower($1)", name).
		Scan(&c.ID, &c.Name, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Class{}, ErrNotFound
	}
	if err != nil {
		return models.Class{}, fmt.Errorf("select class: %w", err)
	}
	return c, nil
}

// GetRaceByName looks a race up by exact name, case-insensitively.
func (s *Store) GetRaceByName(ctx context.Context, name string) (models.Race, error) {
	var r models.Race
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description FROM races WHERE lower(name) = lower($1)", name).
		Scan(&r.ID, &r.Name, &r.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Race{}, ErrNotFound
	}
	if err != nil {
		return models.Race{}, fmt.Errorf("select race: %w", err)
	}
	return r, nil
}

// ClosestClasses returns up to limit classes ordered by embedding distance.
// An empty result is valid.
func (s *Store) ClosestClasses(ctx context.Context, embedding []float32, limit int) ([]CatalogMatch, error) {
	return s.closest(ctx, "classes", embedding, limit)
}

// ClosestRaces returns up to limit races ordered by embedding distance.
func (s *Store) ClosestRaces(ctx context.Context, embedding []float32, limit int) ([]CatalogMatch, error) {
	return s.closest(ctx, "races", embedding, limit)
}

func (s *Store) closest(ctx context.Context, table string, embedding []float32, limit int) ([]CatalogMatch, error) {
	query := fmt.Sprintf(
		`SELECT name, description, embedding <-> $1::vector AS distance
		 FROM %s WHERE embedding IS NOT NULL
		 ORDER BY distance ASC LIMIT $2`, table)
	rows, err := s.db.QueryContext(ctx, query, vectorLiteral(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", table, err)
	}
	defer rows.Close()

	matches := []CatalogMatch{}
	for rows.Next() {
		var m CatalogMatch
		if err := rows.Scan(&m.Name, &m.Description, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan %s match: %w", table, err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// vectorLiteral renders an embedding as the pgvector text format "[1,2,3]".
func vectorLiteral(embedding []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
