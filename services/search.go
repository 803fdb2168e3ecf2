package services

import (
	"context"
	"fmt"

	"charforge/store"
)

// Search kinds accepted by Closest.
const (
	SearchKindClass = "class"
	SearchKindRace  = "race"
)

const (
	defaultSearchLimit = 3
	maxSearchLimit     = 10
)

// Embedder produces an embedding vector for a query. Satisfied by *Gateway.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type catalogStore interface {
	ClosestClasses(ctx context.Context, embedding []float32, limit int) ([]store.CatalogMatch, error)
	ClosestRaces(ctx context.Context, embedding []float32, limit int) ([]store.CatalogMatch, error)
}

// Search ranks catalog entries by semantic similarity to a free-text
// description: the query is embedded once, then matched against stored
// entity embeddings in Postgres.
type Search struct {
	embedder Embedder
	catalog  catalogStore
}

func NewSearch(embedder Embedder, catalog catalogStore) *Search {
	return &Search{embedder: embedder, catalog: catalog}
}

// Closest returns up to limit entries of the given kind ordered ascending by
// distance. An empty result is valid, not an error.
func (s *Search) Closest(ctx context.Context, kind, query string, limit int) ([]store.CatalogMatch, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	switch kind {
	case SearchKindClass:
		return s.catalog.ClosestClasses(ctx, embedding, limit)
	case SearchKindRace:
		return s.catalog.ClosestRaces(ctx, embedding, limit)
	default:
		return nil, fmt.Errorf("unknown search kind %q", kind)
	}
}
