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

// FindOrCreateUser resolves an email address to a user, creating the record
// on first sight. Emails arrive pre-authenticated from the gateway header.
func (s *Store) FindOrCreateUser(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, created_at FROM users WHERE email = $1", email).
		Scan(&user.ID, &user.Email, &user.CreatedAt)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("select user: %w", err)
	}

	user = models.User{ID: uuid.New(), Email: email, CreatedAt: time.Now()}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO NOTHING`,
		user.ID, user.Email, user.CreatedAt)
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}

	// Re-read to cover the conflict path where a concurrent request won.
	err = s.db.QueryRowContext(ctx,
		"SELECT id, email, created_at FROM users WHERE email = $1", email).
		Scan(&user.ID, &user.Email, &user.CreatedAt)
	if err != nil {
		return models.User{}, fmt.Errorf("reselect user: %w", err)
	}
	return user, nil
}
