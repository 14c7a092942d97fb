package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lexichat/internal/core"
)

// SQLiteStore implements Store for SQLite databases.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite history store.
// It creates the turns table if it doesn't exist.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	// seq keeps insertion order; timestamps can collide.
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS chat_turns (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			session TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp DATETIME NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat_turns table: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_chat_turns_session ON chat_turns(session, seq)"); err != nil {
		return nil, fmt.Errorf("failed to create chat_turns index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append inserts all turns in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, session string, turns ...Turn) error {
	if session == "" {
		return ErrEmptySession
	}
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chat_turns (id, session, role, content, timestamp) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range turns {
		if _, err := stmt.ExecContext(ctx, t.ID, session, string(t.Role), t.Content,
			t.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("failed to insert turn %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turns: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, session string) ([]Turn, error) {
	if session == "" {
		return nil, ErrEmptySession
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, role, content, timestamp FROM chat_turns WHERE session = ? ORDER BY seq", session)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t    Turn
			role string
			ts   string
		)
		if err := rows.Scan(&t.ID, &role, &t.Content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Role = core.Role(role)
		if t.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("failed to parse timestamp of turn %s: %w", t.ID, err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turns: %w", err)
	}
	return turns, nil
}

func (s *SQLiteStore) Clear(ctx context.Context, session string) error {
	if session == "" {
		return ErrEmptySession
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chat_turns WHERE session = ?", session); err != nil {
		return fmt.Errorf("failed to clear session %s: %w", session, err)
	}
	return nil
}

// Close is a no-op; the DB is managed by the storage layer.
func (s *SQLiteStore) Close() error {
	return nil
}
