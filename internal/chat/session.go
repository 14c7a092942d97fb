// Package chat drives a conversation: it keeps the history, streams each
// reply through the client and serves the interactive loop around it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"lexichat/internal/core"
	"lexichat/internal/history"
)

// Mode selects the streaming discipline used for each turn.
type Mode string

const (
	// ModeConcurrent reads the stream on a background goroutine.
	ModeConcurrent Mode = "concurrent"
	// ModeSequential reads the stream on the calling goroutine.
	ModeSequential Mode = "sequential"
)

// ParseMode accepts "concurrent" or "sequential" (and the "async"/"sync" aliases).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "concurrent", "async":
		return ModeConcurrent, nil
	case "sequential", "sync":
		return ModeSequential, nil
	}
	return "", fmt.Errorf("unknown mode %q: must be concurrent or sequential", s)
}

// SessionConfig holds the per-conversation request settings.
type SessionConfig struct {
	ID           string
	Model        string
	Temperature  float64
	Mode         Mode
	SystemPrompt string
}

// Session is one conversation. Turns are recorded only after a reply
// completes, so an interrupted or failed turn leaves no trace.
type Session struct {
	client core.ChatClient
	store  history.Store
	cfg    SessionConfig
	logger *slog.Logger
}

// NewSession creates a Session. An empty ID gets a random one.
func NewSession(client core.ChatClient, store history.Store, cfg SessionConfig, logger *slog.Logger) (*Session, error) {
	if client == nil {
		return nil, errors.New("chat client is required")
	}
	if store == nil {
		store = history.NewMemoryStore()
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeConcurrent
	}
	if cfg.Mode != ModeConcurrent && cfg.Mode != ModeSequential {
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		client: client,
		store:  store,
		cfg:    cfg,
		logger: logger.With("session", cfg.ID),
	}, nil
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.cfg.ID
}

// Mode returns the streaming mode.
func (s *Session) Mode() Mode {
	return s.cfg.Mode
}

// Send streams the reply to prompt, writing each fragment to out as it
// arrives. It returns the full reply. On error the partial reply written so
// far is returned alongside the error; ctx.Err() is returned when the turn
// was interrupted.
func (s *Session) Send(ctx context.Context, prompt string, out io.Writer) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", core.NewInvalidRequestError("prompt is empty", nil)
	}

	past, err := s.store.List(ctx, s.cfg.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load history: %w", err)
	}

	messages := make([]core.Message, 0, len(past)+2)
	if s.cfg.SystemPrompt != "" {
		messages = append(messages, core.Message{Role: core.RoleSystem, Content: s.cfg.SystemPrompt})
	}
	messages = append(messages, history.Messages(past)...)
	messages = append(messages, core.Message{Role: core.RoleUser, Content: prompt})

	req := &core.StreamRequest{
		Model:       s.cfg.Model,
		Messages:    messages,
		Temperature: s.cfg.Temperature,
	}

	requestID := uuid.NewString()
	ctx = core.WithSessionID(core.WithRequestID(ctx, requestID), s.cfg.ID)
	s.logger.DebugContext(ctx, "sending turn", "mode", s.cfg.Mode, "request_id", requestID, "history", len(past))

	var reply string
	switch s.cfg.Mode {
	case ModeSequential:
		reply, err = s.streamSequential(ctx, req, out)
	default:
		reply, err = s.streamConcurrent(ctx, req, out)
	}
	if err != nil {
		return reply, err
	}
	if reply == "" {
		s.logger.DebugContext(ctx, "empty reply, turn not recorded", "request_id", requestID)
		return reply, nil
	}

	if err := s.store.Append(ctx, s.cfg.ID,
		history.NewTurn(core.RoleUser, prompt),
		history.NewTurn(core.RoleAssistant, reply),
	); err != nil {
		return reply, fmt.Errorf("failed to record turn: %w", err)
	}
	return reply, nil
}

func (s *Session) streamConcurrent(ctx context.Context, req *core.StreamRequest, out io.Writer) (string, error) {
	// Cancelling stops the producer if out fails.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := s.client.StreamConcurrent(ctx, req)
	if err != nil {
		return "", err
	}

	var reply strings.Builder
	for f := range ch {
		switch {
		case f.Err != nil:
			return reply.String(), f.Err
		case f.Done:
			return reply.String(), nil
		}
		reply.WriteString(f.Text)
		if _, err := io.WriteString(out, f.Text); err != nil {
			return reply.String(), fmt.Errorf("failed to write reply: %w", err)
		}
	}

	// Closed without a sentinel: the turn was cancelled.
	if err := ctx.Err(); err != nil {
		return reply.String(), err
	}
	return reply.String(), errors.New("stream ended without a terminal fragment")
}

func (s *Session) streamSequential(ctx context.Context, req *core.StreamRequest, out io.Writer) (string, error) {
	r, err := s.client.StreamSequential(ctx, req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = r.Close()
	}()

	var reply strings.Builder
	for {
		text, err := r.Recv()
		if errors.Is(err, io.EOF) {
			return reply.String(), nil
		}
		if err != nil {
			return reply.String(), err
		}
		reply.WriteString(text)
		if _, err := io.WriteString(out, text); err != nil {
			return reply.String(), fmt.Errorf("failed to write reply: %w", err)
		}
	}
}

// History returns the recorded turns, oldest first.
func (s *Session) History(ctx context.Context) ([]history.Turn, error) {
	return s.store.List(ctx, s.cfg.ID)
}

// Reset forgets every recorded turn.
func (s *Session) Reset(ctx context.Context) error {
	return s.store.Clear(ctx, s.cfg.ID)
}

// Balance queries the account balance.
func (s *Session) Balance(ctx context.Context) core.BalanceResult {
	return s.client.GetBalance(ctx)
}
