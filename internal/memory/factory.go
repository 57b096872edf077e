package memory

import (
	"context"
	"log"
)

// NewStore builds a postgres-backed store when databaseURL is set and
// falls back to the in-memory store otherwise.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if databaseURL == "" {
		log.Printf("memory: no database configured, using in-memory store")
		return NewInMemoryStore(), nil
	}
	store, err := NewPostgresStore(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	log.Printf("memory: using postgres store")
	return store, nil
}
