package core

import "fmt"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the roles the completion endpoint accepts.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message represents a single message in the conversation history
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// StreamRequest is one streaming completion call. Messages are sent in the
// order given; callers must not mutate the slice while a call is running.
type StreamRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
}

// Validate rejects requests that the endpoint would refuse anyway.
func (r *StreamRequest) Validate() error {
	if r == nil {
		return NewInvalidRequestError("request is required", nil)
	}
	if r.Model == "" {
		return NewInvalidRequestError("model is required", nil)
	}
	if len(r.Messages) == 0 {
		return NewInvalidRequestError("messages must not be empty", nil)
	}
	for i, m := range r.Messages {
		if !m.Role.Valid() {
			return NewInvalidRequestError(fmt.Sprintf("messages[%d]: unknown role %q", i, m.Role), nil)
		}
	}
	return nil
}

// ChatCompletionBody is the JSON body posted to the completion endpoint.
type ChatCompletionBody struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

// Body returns the wire body for r with streaming enabled.
func (r *StreamRequest) Body() *ChatCompletionBody {
	return &ChatCompletionBody{
		Model:       r.Model,
		Messages:    r.Messages,
		Temperature: r.Temperature,
		Stream:      true,
	}
}

// Fragment is one element of a concurrent stream. Exactly one of Text,
// Done or Err is set.
type Fragment struct {
	// Text is a non-empty content delta.
	Text string
	// Done marks the terminal sentinel; nothing follows it.
	Done bool
	// Err reports a failure that ended the stream early. It replaces the sentinel.
	Err error
}

// EndOfStream is the terminal sentinel sent once a stream completes normally.
var EndOfStream = Fragment{Done: true}

// IsEnd reports whether f terminates the stream, either normally or with an error.
func (f Fragment) IsEnd() bool {
	return f.Done || f.Err != nil
}

// BalanceResult is the pass-through body of the balance endpoint, or the
// error that prevented fetching it.
type BalanceResult struct {
	Fields map[string]any
	Err    error
}

// OK reports whether the balance was fetched successfully.
func (b BalanceResult) OK() bool {
	return b.Err == nil
}
