package core

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamRequest_Validate(t *testing.T) {
	valid := []Message{{Role: RoleUser, Content: "hi"}}

	tests := []struct {
		name    string
		req     *StreamRequest
		wantErr bool
	}{
		{"valid", &StreamRequest{Model: "m1", Messages: valid, Temperature: 0.5}, false},
		{"nil request", nil, true},
		{"missing model", &StreamRequest{Messages: valid}, true},
		{"empty history", &StreamRequest{Model: "m1"}, true},
		{"unknown role", &StreamRequest{Model: "m1", Messages: []Message{{Role: "tool", Content: "x"}}}, true},
		{"all roles", &StreamRequest{Model: "m1", Messages: []Message{
			{Role: RoleSystem, Content: "s"},
			{Role: RoleUser, Content: "u"},
			{Role: RoleAssistant, Content: "a"},
		}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsType(err, ErrorTypeInvalidRequest))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestStreamRequest_Body(t *testing.T) {
	req := &StreamRequest{
		Model: "m1",
		Messages: []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleUser, Content: "again"},
		},
		Temperature: 0.5,
	}

	raw, err := json.Marshal(req.Body())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "m1", decoded["model"])
	assert.Equal(t, 0.5, decoded["temperature"])
	assert.Equal(t, true, decoded["stream"])

	messages, ok := decoded["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 4)
	for i, m := range req.Messages {
		got := messages[i].(map[string]any)
		assert.Equal(t, string(m.Role), got["role"], "role order at %d", i)
		assert.Equal(t, m.Content, got["content"], "content order at %d", i)
	}
}

func TestStreamRequest_BodyKeepsZeroTemperature(t *testing.T) {
	req := &StreamRequest{Model: "m1", Messages: []Message{{Role: RoleUser, Content: "hi"}}}

	raw, err := json.Marshal(req.Body())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"temperature":0`)
}

func TestFragment_IsEnd(t *testing.T) {
	assert.False(t, Fragment{Text: "a"}.IsEnd())
	assert.True(t, EndOfStream.IsEnd())
	assert.True(t, Fragment{Err: NewTransportError("p", "broken", nil)}.IsEnd())
}

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetSessionID(ctx))

	ctx = WithSessionID(WithRequestID(ctx, "req-1"), "sess-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "sess-1", GetSessionID(ctx))
}
