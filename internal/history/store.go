// Package history keeps the turns of a conversation so a session can be
// resumed and inspected.
package history

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"lexichat/internal/core"
)

// ErrEmptySession is returned when a store is called without a session ID.
var ErrEmptySession = errors.New("history: session ID is required")

// Turn is one recorded message.
type Turn struct {
	ID        string    `json:"id"`
	Role      core.Role `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn stamps a message with a fresh ID and the current UTC time.
func NewTurn(role core.Role, content string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// Message converts t to the wire message shape.
func (t Turn) Message() core.Message {
	return core.Message{Role: t.Role, Content: t.Content}
}

// Messages converts turns to messages, preserving order.
func Messages(turns []Turn) []core.Message {
	out := make([]core.Message, len(turns))
	for i, t := range turns {
		out[i] = t.Message()
	}
	return out
}

// Store persists turns per session. Implementations must be safe for
// concurrent use.
type Store interface {
	// Append records turns at the end of the session, in the order given.
	Append(ctx context.Context, session string, turns ...Turn) error
	// List returns the session's turns oldest first. An unknown session is empty.
	List(ctx context.Context, session string) ([]Turn, error)
	// Clear removes every turn of the session.
	Clear(ctx context.Context, session string) error
	// Close releases store resources. The underlying connection is owned by
	// the storage layer and is not closed here.
	Close() error
}

// MemoryStore keeps turns in process memory. It is the default backend and
// loses everything on exit.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Turn)}
}

func (s *MemoryStore) Append(_ context.Context, session string, turns ...Turn) error {
	if session == "" {
		return ErrEmptySession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session] = append(s.sessions[session], turns...)
	return nil
}

func (s *MemoryStore) List(_ context.Context, session string) ([]Turn, error) {
	if session == "" {
		return nil, ErrEmptySession
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sessions[session]), nil
}

func (s *MemoryStore) Clear(_ context.Context, session string) error {
	if session == "" {
		return ErrEmptySession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, session)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
