package memory

import (
	"context"
	"time"
)

// TurnRecord is one persisted conversation turn.
type TurnRecord struct {
	ID         string
	SessionID  string
	CustomerID string
	Role       string
	Content    string
	CreatedAt  time.Time
}

// Store persists conversation turns. Implementations must be safe for
// concurrent use.
type Store interface {
	SaveTurn(ctx context.Context, rec TurnRecord) error
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error)
	Close(ctx context.Context) error
}
