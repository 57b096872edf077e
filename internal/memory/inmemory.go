package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps turns in process memory. It backs deployments
// without a database and the test suite.
type InMemoryStore struct {
	mu    sync.Mutex
	turns []TurnRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) SaveTurn(_ context.Context, rec TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.turns = append(s.turns, rec)
	return nil
}

func (s *InMemoryStore) RecentTurns(_ context.Context, sessionID string, limit int) ([]TurnRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []TurnRecord
	for _, rec := range s.turns {
		if rec.SessionID == sessionID {
			matched = append(matched, rec)
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	out := make([]TurnRecord, len(matched))
	copy(out, matched)
	return out, nil
}

func (s *InMemoryStore) Close(context.Context) error {
	return nil
}
