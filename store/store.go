// Package store is the Postgres data access layer. Conversations and
// messages form an append-only log: messages are inserted and read back in
// serial-id order, never updated or deleted.
package store

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned when an entity does not exist or is owned by a
// different user; callers cannot distinguish the two cases by design.
var ErrNotFound = errors.New("not found")

// Store wraps the shared *sql.DB handle.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}
