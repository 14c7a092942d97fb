package chat

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexichat/internal/core"
)

// syncBuffer is a goroutine-safe output sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runREPL(t *testing.T, client *fakeClient, input string) string {
	t.Helper()
	s, _ := newSession(t, client, ModeConcurrent, "")
	out := &syncBuffer{}
	repl := NewREPL(s, out, REPLOptions{})
	require.NoError(t, repl.Run(context.Background(), strings.NewReader(input)))
	return out.String()
}

func TestREPL_SendCommandSubmitsMultiLineInput(t *testing.T) {
	client := &fakeClient{fragments: []string{"Hel", "lo"}}
	out := runREPL(t, client, "line one\nline two\n/send\n/exit\nignored\n")

	assert.Equal(t, "Hello\n", out)
	require.NotNil(t, client.lastRequest())
	assert.Equal(t, "line one\nline two", client.lastRequest().Messages[0].Content)
}

func TestREPL_BlankLinesStayInPrompt(t *testing.T) {
	client := &fakeClient{fragments: []string{"ok"}}
	out := runREPL(t, client, "\npara one\n\npara two\n\n/send\n")

	assert.Equal(t, "ok\n", out)
	client.mu.Lock()
	defer client.mu.Unlock()
	require.Len(t, client.requests, 1)
	assert.Equal(t, "para one\n\npara two", client.requests[0].Messages[0].Content)
}

func TestREPL_SendWithoutInputIsIgnored(t *testing.T) {
	client := &fakeClient{fragments: []string{"ok"}}
	out := runREPL(t, client, "/send\n\n\n/send\n")

	assert.Empty(t, out)
	assert.Nil(t, client.lastRequest())
}

func TestREPL_EOFSubmitsPendingInput(t *testing.T) {
	client := &fakeClient{fragments: []string{"bye"}}
	out := runREPL(t, client, "piped question")

	assert.Equal(t, "bye\n", out)
}

func TestREPL_NoPromptWhenNotInteractive(t *testing.T) {
	out := runREPL(t, &fakeClient{}, "/exit\n")
	assert.Empty(t, out)
}

func TestREPL_InteractiveShowsPrompt(t *testing.T) {
	s, _ := newSession(t, &fakeClient{}, ModeSequential, "")
	out := &syncBuffer{}
	repl := NewREPL(s, out, REPLOptions{Interactive: true})
	require.NoError(t, repl.Run(context.Background(), strings.NewReader("partial\n/exit\n")))

	assert.Contains(t, out.String(), "sequential mode")
	assert.Contains(t, out.String(), prompt)
	assert.Contains(t, out.String(), continuation)
}

func TestREPL_Commands(t *testing.T) {
	client := &fakeClient{
		fragments: []string{"Hello"},
		balance:   core.BalanceResult{Fields: map[string]any{"is_available": true}},
	}
	out := runREPL(t, client, "/history\nhi\n/send\n/history\n/reset\n/history\n/balance\n/help\n")

	assert.Contains(t, out, "(no turns yet)")
	assert.Contains(t, out, "user: hi")
	assert.Contains(t, out, "assistant: Hello")
	assert.Contains(t, out, "history cleared")
	assert.Equal(t, 2, strings.Count(out, "(no turns yet)"))
	assert.Contains(t, out, `"is_available": true`)
	assert.Contains(t, out, "/balance  show the account balance")
}

func TestREPL_BalanceFailureIsPrinted(t *testing.T) {
	client := &fakeClient{balance: core.BalanceResult{Err: errors.New("503 Service Unavailable")}}
	out := runREPL(t, client, "/balance\n")

	assert.Contains(t, out, "balance unavailable: 503 Service Unavailable")
}

func TestREPL_TurnErrorKeepsLoopRunning(t *testing.T) {
	client := &fakeClient{openErr: core.NewRateLimitError("deepseek", "slow down")}
	out := runREPL(t, client, "hi\n/send\n/history\n")

	assert.Contains(t, out, "error: ")
	assert.Contains(t, out, "slow down")
	assert.Contains(t, out, "(no turns yet)")
}

func TestREPL_InterruptCancelsOnlyTheTurn(t *testing.T) {
	client := &fakeClient{fragments: []string{"Hel"}, stall: true}
	s, _ := newSession(t, client, ModeConcurrent, "")

	interrupts := make(chan struct{})
	out := &syncBuffer{}
	repl := NewREPL(s, out, REPLOptions{Interrupts: interrupts})

	inR, inW := io.Pipe()
	defer inW.Close()

	done := make(chan error, 1)
	go func() { done <- repl.Run(context.Background(), inR) }()

	_, err := io.WriteString(inW, "hi\n/send\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Hel") }, 5*time.Second, 10*time.Millisecond)

	interrupts <- struct{}{}
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "[interrupted]") }, 5*time.Second, 10*time.Millisecond)

	// The loop is still alive and the turn was not recorded.
	_, err = io.WriteString(inW, "/history\n/exit\n")
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("REPL did not exit")
	}
	assert.Contains(t, out.String(), "(no turns yet)")
}

func TestREPL_InterruptAtPrompt(t *testing.T) {
	s, _ := newSession(t, &fakeClient{}, ModeConcurrent, "")

	interrupts := make(chan struct{})
	out := &syncBuffer{}
	repl := NewREPL(s, out, REPLOptions{Interactive: true, Interrupts: interrupts})

	inR, inW := io.Pipe()
	defer inW.Close()

	done := make(chan error, 1)
	go func() { done <- repl.Run(context.Background(), inR) }()

	_, err := io.WriteString(inW, "draft\n")
	require.NoError(t, err)
	// The continuation prompt shows the draft is buffered.
	require.Eventually(t, func() bool { return strings.Contains(out.String(), continuation) }, 5*time.Second, 10*time.Millisecond)

	// First interrupt discards the draft, second exits.
	interrupts <- struct{}{}
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "(input discarded)") }, 5*time.Second, 10*time.Millisecond)
	interrupts <- struct{}{}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("REPL did not exit")
	}
}

func TestREPL_ContextCancelExits(t *testing.T) {
	s, _ := newSession(t, &fakeClient{}, ModeConcurrent, "")
	repl := NewREPL(s, io.Discard, REPLOptions{})

	inR, inW := io.Pipe()
	defer inW.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- repl.Run(ctx, inR) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("REPL did not exit")
	}
}
