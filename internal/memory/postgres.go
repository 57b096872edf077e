package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const turnsSchema = `
CREATE TABLE IF NOT EXISTS conversation_turns (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	customer_id TEXT NOT NULL,
	role        TEXT NOT NULL,
	content     TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS conversation_turns_session_idx
	ON conversation_turns (session_id, created_at);
`

// PostgresStore persists turns in postgres through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if _, err := pool.Exec(ctx, turnsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init turns schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) SaveTurn(ctx context.Context, rec TurnRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_turns (id, session_id, customer_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.SessionID, rec.CustomerID, rec.Role, rec.Content, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, customer_id, role, content, created_at
		 FROM conversation_turns
		 WHERE session_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []TurnRecord
	for rows.Next() {
		var rec TurnRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.CustomerID, &rec.Role, &rec.Content, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	// Reverse to oldest-first to match the in-memory store.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *PostgresStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}
